package service

import (
	"context"
	"strings"
	"time"

	"calendarapp/internal/ical"
	"calendarapp/internal/models"
	"calendarapp/internal/observability"
	"calendarapp/internal/repository"
)

// EventService manages calendar events and their wire representation.
type EventService struct {
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
	now       func() time.Time
}

// CreateEventInput carries a create request. ActorID is the signed-in user;
// zero skips the ownership check (admin tooling, seeding).
type CreateEventInput struct {
	ActorID uint
	Payload models.EventPayload
}

type UpdateEventInput struct {
	ActorID uint
	EventID uint
	Payload models.EventPayload
}

type DeleteEventInput struct {
	ActorID uint
	EventID uint
}

func NewEventService(eventRepo repository.EventRepository, userRepo repository.UserRepository) *EventService {
	return &EventService{eventRepo: eventRepo, userRepo: userRepo, now: time.Now}
}

// List returns the user's events ordered by date ascending, then id.
func (s *EventService) List(ctx context.Context, userID uint) ([]models.EventDTO, error) {
	events, err := s.eventRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.EventDTO, 0, len(events))
	for i := range events {
		out = append(out, models.NewEventDTO(&events[i]))
	}
	return out, nil
}

func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*models.EventDTO, error) {
	ownerID := in.Payload.UserID
	if ownerID == 0 {
		ownerID = in.ActorID
	}
	if ownerID == 0 {
		return nil, models.NewFieldValidationError(map[string]string{"userId": "userId is required"})
	}
	if in.ActorID != 0 && ownerID != in.ActorID {
		return nil, models.NewForbiddenError("Cannot create events for another user")
	}

	// The owner must exist before anything is written.
	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	event := &models.Event{UserID: ownerID}
	if err := applyPayload(event, &in.Payload); err != nil {
		return nil, err
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}
	observability.EventMutations.WithLabelValues("create").Inc()

	dto := models.NewEventDTO(event)
	return &dto, nil
}

// Update replaces every mutable field of the event. The owner never changes.
func (s *EventService) Update(ctx context.Context, in UpdateEventInput) (*models.EventDTO, error) {
	event, err := s.ownedEvent(ctx, in.ActorID, in.EventID)
	if err != nil {
		return nil, err
	}

	if err := applyPayload(event, &in.Payload); err != nil {
		return nil, err
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}
	observability.EventMutations.WithLabelValues("update").Inc()

	dto := models.NewEventDTO(event)
	return &dto, nil
}

func (s *EventService) Delete(ctx context.Context, in DeleteEventInput) error {
	if in.ActorID != 0 {
		if _, err := s.ownedEvent(ctx, in.ActorID, in.EventID); err != nil {
			return err
		}
	}

	if err := s.eventRepo.Delete(ctx, in.EventID); err != nil {
		return err
	}
	observability.EventMutations.WithLabelValues("delete").Inc()
	return nil
}

// Export renders the user's events as an iCalendar document.
func (s *EventService) Export(ctx context.Context, userID uint) ([]byte, error) {
	events, err := s.eventRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := ical.Marshal(events, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return data, nil
}

func (s *EventService) ownedEvent(ctx context.Context, actorID, eventID uint) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if actorID != 0 && event.UserID != actorID {
		return nil, models.NewForbiddenError("Event belongs to another user")
	}
	return event, nil
}

// applyPayload copies every mutable field, falling back to defaults for
// fields the payload leaves out.
func applyPayload(e *models.Event, p *models.EventPayload) error {
	date, err := models.ParseDate(p.Date)
	if err != nil {
		return models.NewFieldValidationError(map[string]string{"date": "date must use the YYYY-MM-DD format"})
	}

	var endDate *models.Date
	if p.EndDate != nil && strings.TrimSpace(*p.EndDate) != "" {
		d, err := models.ParseDate(*p.EndDate)
		if err != nil {
			return models.NewFieldValidationError(map[string]string{"endDate": "endDate must use the YYYY-MM-DD format"})
		}
		endDate = &d
	}

	e.Title = strings.TrimSpace(p.Title)
	e.Date = date
	e.Time = p.Time
	e.EndDate = endDate
	e.MeetingLink = p.MeetingLink

	e.Color = p.Color
	if e.Color == "" {
		e.Color = models.DefaultEventColor
	}
	e.Recurrence = p.Recurrence
	if e.Recurrence == "" {
		e.Recurrence = models.DefaultEventRecurrence
	}

	e.ReminderEnabled = true
	if p.ReminderEnabled != nil {
		e.ReminderEnabled = *p.ReminderEnabled
	}
	e.ReminderMinutes = models.DefaultReminderMinutes
	if p.ReminderMinutes != nil {
		e.ReminderMinutes = *p.ReminderMinutes
	}
	return nil
}
