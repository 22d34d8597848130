// Package seed provides helpers to create demo data for the calendar
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calendarapp/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

var (
	eventTitles = []string{
		"Standup", "Sprint planning", "Retro", "Dentist", "Gym", "Yoga",
		"Team lunch", "Design review", "Quarterly review", "Doctor appointment",
		"Book club", "Haircut", "Flight", "Conference talk", "Grocery run",
	}
	personalTitles = []string{"1:1 with %s", "Coffee with %s", "Dinner with %s", "Call %s"}
	eventColors    = []string{models.DefaultEventColor, "secondary", "success", "danger", "warning", "info"}
	recurrences    = []string{models.DefaultEventRecurrence, models.DefaultEventRecurrence, "daily", "weekly", "monthly", "yearly"}
	reminderSteps  = []int{5, 10, 15, 30, 60, 1440}
)

// Factory builds users and events with plausible fake content.
type Factory struct {
	db     *gorm.DB
	faker  *gofakeit.Faker
	now    time.Time
	cost   int
	hashed string
}

// NewFactory creates a Factory bound to db. A zero seed picks a random one.
func NewFactory(db *gorm.DB, seed int64, bcryptCost int) *Factory {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Factory{db: db, faker: gofakeit.New(seed), now: time.Now(), cost: bcryptCost}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hashed != "" {
		return f.hashed, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), f.cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.hashed = string(hash)
	return f.hashed, nil
}

// BuildUser returns an unsaved local account. Overrides run last.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(f.faker.Email()),
		Password:     &hash,
		DisplayName:  f.faker.Name(),
		AvatarURL:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		AuthProvider: models.AuthProviderLocal,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// uniqueEmail prefixes the fake address so repeated runs never collide.
func (f *Factory) uniqueEmail(n int) func(*models.User) {
	return func(u *models.User) {
		u.Email = fmt.Sprintf("%d.%s.%s", n, f.faker.UUID()[:8], u.Email)
	}
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return user, nil
}

// BuildEvent returns an unsaved event for owner dated within a month back
// and two months ahead of the factory clock.
func (f *Factory) BuildEvent(owner *models.User, overrides ...func(*models.Event)) *models.Event {
	day := f.faker.DateRange(f.now.AddDate(0, 0, -30), f.now.AddDate(0, 0, 60))

	title := f.faker.RandomString(eventTitles)
	if f.faker.Number(0, 3) == 0 {
		title = fmt.Sprintf(f.faker.RandomString(personalTitles), f.faker.FirstName())
	}

	event := &models.Event{
		Title:           title,
		Date:            models.NewDate(day.Year(), day.Month(), day.Day()),
		Color:           f.faker.RandomString(eventColors),
		Recurrence:      f.faker.RandomString(recurrences),
		ReminderEnabled: f.faker.Number(0, 4) > 0,
		ReminderMinutes: reminderSteps[f.faker.Number(0, len(reminderSteps)-1)],
		UserID:          owner.ID,
	}

	if f.faker.Bool() {
		clock := fmt.Sprintf("%02d:%02d", f.faker.Number(7, 19), f.faker.Number(0, 3)*15)
		event.Time = &clock
	}
	if f.faker.Number(0, 5) == 0 {
		end := event.Date.AddDays(f.faker.Number(1, 4))
		event.EndDate = &end
	}
	if f.faker.Number(0, 3) == 0 {
		link := fmt.Sprintf("https://meet.example.com/%s", f.faker.UUID()[:8])
		event.MeetingLink = &link
	}

	for _, override := range overrides {
		override(event)
	}
	return event
}

// CreateEvents persists events in a single batch insert.
func (f *Factory) CreateEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).CreateInBatches(events, 100).Error
}
