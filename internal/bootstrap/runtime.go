// Package bootstrap wires the runtime dependencies shared by the server and
// the admin commands.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calendarapp/internal/cache"
	"calendarapp/internal/config"
	"calendarapp/internal/database"
	"calendarapp/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemo {
		if err := seedDemo(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

// seedDemo refuses to run outside development and test environments and
// only fills an empty users table.
func seedDemo(cfg *config.Config, db *gorm.DB) error {
	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	if env != "development" && env != "test" {
		return fmt.Errorf("demo seeding is not allowed in %q", cfg.Env)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Table("users").Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := seed.Seed(ctx, db, seed.Options{NumUsers: 5, EventsPerUser: 10})
	return err
}
