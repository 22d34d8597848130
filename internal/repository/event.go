package repository

import (
	"context"
	"errors"

	"calendarapp/internal/models"
	"calendarapp/internal/observability"

	"gorm.io/gorm"
)

const eventsTable = "events"

// EventRepository defines persistence operations for calendar events.
type EventRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Event, error)
	GetByID(ctx context.Context, id uint) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uint) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type eventRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewEventRepository returns a new EventRepository implementation.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db, logger: observability.NewRepoLogger(eventsTable)}
}

// ListByUser returns the user's events by date, then id. It never returns a
// nil slice.
func (r *eventRepository) ListByUser(ctx context.Context, userID uint) (events []models.Event, err error) {
	ctx, end := startSpan(ctx, r.db, "ListByUser", eventsTable)
	defer func() { end(err) }()

	events = make([]models.Event, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (event *models.Event, err error) {
	ctx, end := startSpan(ctx, r.db, "GetByID", eventsTable)
	defer func() { end(err) }()

	var e models.Event
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Event", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &e, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) (err error) {
	ctx, end := startSpan(ctx, r.db, "Create", eventsTable)
	defer func() { end(err) }()

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"event_id": event.ID, "user_id": event.UserID})
	return nil
}

// Update overwrites every column of the stored row.
func (r *eventRepository) Update(ctx context.Context, event *models.Event) (err error) {
	ctx, end := startSpan(ctx, r.db, "Update", eventsTable)
	defer func() { end(err) }()

	if err := r.db.WithContext(ctx).Save(event).Error; err != nil {
		r.logger.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"event_id": event.ID})
	return nil
}

// Delete removes the event; a missing id is reported as not found.
func (r *eventRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, end := startSpan(ctx, r.db, "Delete", eventsTable)
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Delete(&models.Event{}, id)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "delete")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Event", id)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"event_id": id})
	return nil
}

func (r *eventRepository) CountByUser(ctx context.Context, userID uint) (count int64, err error) {
	ctx, end := startSpan(ctx, r.db, "CountByUser", eventsTable)
	defer func() { end(err) }()

	if err := r.db.WithContext(ctx).Model(&models.Event{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
