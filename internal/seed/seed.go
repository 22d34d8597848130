package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"calendarapp/internal/models"

	"gorm.io/gorm"
)

// DemoEmail is the fixed account created by every seed run.
const DemoEmail = "demo@calendar.local"

// Options configuration for the seeder
type Options struct {
	NumUsers      int
	EventsPerUser int
	Clean         bool
	// BcryptCost overrides the hashing cost; zero uses bcrypt.DefaultCost.
	BcryptCost int
	// Seed makes generated data reproducible; zero picks a random seed.
	Seed int64
}

// Result summarizes what a seed run created.
type Result struct {
	Users  int
	Events int
	Demo   *models.User
}

// Seed fills the database with a demo account plus opts.NumUsers random
// accounts, each owning opts.EventsPerUser events.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	if db == nil {
		return nil, fmt.Errorf("seed: nil database")
	}
	if opts.NumUsers < 0 || opts.EventsPerUser < 0 {
		return nil, fmt.Errorf("seed: counts must not be negative")
	}

	start := time.Now()
	if opts.Clean {
		log.Println("Cleaning existing calendar data...")
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	factory := NewFactory(db, opts.Seed, opts.BcryptCost)
	result := &Result{}

	demo, err := ensureDemoUser(ctx, db, factory)
	if err != nil {
		return nil, err
	}
	result.Demo = demo

	owners := []*models.User{demo}
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser(ctx, factory.uniqueEmail(i))
		if err != nil {
			return nil, err
		}
		owners = append(owners, user)
		result.Users++
	}

	for _, owner := range owners {
		events := make([]*models.Event, 0, opts.EventsPerUser)
		for j := 0; j < opts.EventsPerUser; j++ {
			events = append(events, factory.BuildEvent(owner))
		}
		if err := factory.CreateEvents(ctx, events); err != nil {
			return nil, fmt.Errorf("create events for %s: %w", owner.Email, err)
		}
		result.Events += len(events)
	}

	log.Printf("Seeded %d users and %d events in %s (demo login: %s / %s)",
		result.Users, result.Events, time.Since(start).Round(time.Millisecond), DemoEmail, DefaultPassword)
	return result, nil
}

// Clean removes every event and user. Events go first so the foreign key
// never blocks the user delete.
func Clean(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Event{}).Error; err != nil {
			return fmt.Errorf("clean events: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("clean users: %w", err)
		}
		return nil
	})
}

func ensureDemoUser(ctx context.Context, db *gorm.DB, factory *Factory) (*models.User, error) {
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", DemoEmail).Limit(1).Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("lookup demo user: %w", err)
	}
	if existing.ID != 0 {
		return &existing, nil
	}
	return factory.CreateUser(ctx, func(u *models.User) {
		u.Email = DemoEmail
		u.DisplayName = "Demo User"
	})
}
