package bootstrap

import (
	"testing"

	"calendarapp/internal/cache"
	"calendarapp/internal/config"
	"calendarapp/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T, env, redisAddr string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:          env,
		DBDriver:     "sqlite",
		DBSQLitePath: t.TempDir() + "/calendar.db",
		RedisURL:     redisAddr,
	}
}

func closeAll(t *testing.T, db *gorm.DB) {
	t.Helper()
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rdb := cache.GetClient(); rdb != nil {
			_ = rdb.Close()
		}
		cache.SetClient(nil)
	})
}

func TestInitRuntime_SeedsDemoData(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, "test", mr.Addr())

	db, rdb, err := InitRuntime(cfg, Options{SeedDemo: true})
	require.NoError(t, err)
	closeAll(t, db)
	require.NotNil(t, rdb)

	var users, events int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Event{}).Count(&events).Error)
	assert.EqualValues(t, 6, users)
	assert.EqualValues(t, 60, events)

	// A populated database is left alone.
	require.NoError(t, seedDemo(cfg, db))
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 6, users)
}

func TestInitRuntime_WithoutSeed(t *testing.T) {
	mr := miniredis.RunT(t)
	db, _, err := InitRuntime(sqliteConfig(t, "test", mr.Addr()), Options{})
	require.NoError(t, err)
	closeAll(t, db)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestSeedDemo_RefusedInProduction(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, "test", mr.Addr())
	db, _, err := InitRuntime(cfg, Options{})
	require.NoError(t, err)
	closeAll(t, db)

	cfg.Env = "production"
	assert.Error(t, seedDemo(cfg, db))
}
