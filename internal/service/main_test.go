package service

import (
	"context"
	"errors"
	"testing"

	"calendarapp/internal/database"
	"calendarapp/internal/models"
	"calendarapp/internal/repository"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

type fixture struct {
	db     *gorm.DB
	users  repository.UserRepository
	events repository.EventRepository
	auth   *AuthService
	event  *EventService
}

func newFixture(t *testing.T, verifier IdentityVerifier) *fixture {
	t.Helper()
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	events := repository.NewEventRepository(db)

	auth := NewAuthService(users, verifier)
	auth.bcryptCost = bcrypt.MinCost

	return &fixture{
		db:     db,
		users:  users,
		events: events,
		auth:   auth,
		event:  NewEventService(events, users),
	}
}

func (f *fixture) register(t *testing.T, email, password, name string) uint {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterInput{Email: email, Password: password, DisplayName: name})
	require.NoError(t, err)
	require.True(t, resp.Succeeded(), resp.Message)
	return *resp.ID
}

func (f *fixture) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&n).Error)
	return n
}

type stubVerifier struct {
	identity GoogleIdentity
	err      error
}

func (s stubVerifier) Verify(_ context.Context, credential string) (GoogleIdentity, error) {
	if credential == "" {
		return GoogleIdentity{}, errors.New("empty credential")
	}
	return s.identity, s.err
}

func ptr[T any](v T) *T { return &v }

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), err.Error())
}
