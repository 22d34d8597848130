// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"calendarapp/internal/models"
	"calendarapp/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// startSpan opens a repository span and a latency timer for one call.
// The returned func ends both and records err on the span.
func startSpan(ctx context.Context, db *gorm.DB, method, table string) (context.Context, func(err error)) {
	ctx, span := observability.GetTraceLayer(db.Name()).TraceRepositoryMethod(ctx, method, table)
	done := observability.TrackQuery(method, table)
	return ctx, func(err error) {
		done()
		endSpan(span, err)
	}
}

func endSpan(span trace.Span, err error) {
	// Not-found is an expected outcome, not a span error.
	if models.ErrorCode(err) == models.CodeNotFound {
		err = nil
	}
	observability.EndSpan(span, err)
}
