package database

import (
	"context"
	"testing"
	"testing/fstest"

	"calendarapp/internal/config"
	"calendarapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 2)
	assert.Equal(t, "000001_create_users", all[0].String())
	assert.Equal(t, "000002_create_events", all[1].String())
	assert.Contains(t, all[1].UpScript, "ON DELETE CASCADE")
	assert.Contains(t, all[1].DownScript, "DROP TABLE")
	assert.NotNil(t, GetMigrationByVersion(2))
	assert.Nil(t, GetMigrationByVersion(99))
}

func TestLoadMigrations(t *testing.T) {
	t.Run("sorted by version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/000010_b.up.sql":   {Data: []byte("b up")},
			"migrations/000010_b.down.sql": {Data: []byte("b down")},
			"migrations/000002_a.up.sql":   {Data: []byte("a up")},
			"migrations/000002_a.down.sql": {Data: []byte("a down")},
		}
		loaded, err := LoadMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, 2, loaded[0].Version)
		assert.Equal(t, "b down", loaded[1].DownScript)
	})

	t.Run("missing down script", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/000001_a.up.sql": {Data: []byte("a up")},
		}
		_, err := LoadMigrations(fsys)
		assert.Error(t, err)
	})

	t.Run("invalid version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/abc_a.up.sql":   {Data: []byte("a up")},
			"migrations/abc_a.down.sql": {Data: []byte("a down")},
		}
		_, err := LoadMigrations(fsys)
		assert.Error(t, err)
	})
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		runSQL   bool
		runAuto  bool
		hasError bool
	}{
		{"hybrid development", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid production", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"empty mode defaults to hybrid", config.Config{Env: "test"}, true, true, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto in production refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "magic"}, false, false, true},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: DriverSQLite, DBSchemaMode: "sql"}, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestApplySchema_SQLiteCascade(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite}
	ctx := context.Background()

	require.NoError(t, ApplySchema(ctx, db, cfg))

	user := models.User{Email: "a@x.com", AuthProvider: models.AuthProviderLocal}
	require.NoError(t, db.Create(&user).Error)
	event := models.Event{
		Title:      "Standup",
		Date:       models.NewDate(2024, 1, 10),
		Color:      models.DefaultEventColor,
		Recurrence: models.DefaultEventRecurrence,
		UserID:     user.ID,
	}
	require.NoError(t, db.Create(&event).Error)

	require.NoError(t, db.Delete(&models.User{}, user.ID).Error)

	var remaining int64
	require.NoError(t, db.Model(&models.Event{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestGetSchemaStatus_SQLite(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite}

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
}

func TestConnectWithOptions_SQLite(t *testing.T) {
	path := t.TempDir() + "/calendar.db"
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite, DBSQLitePath: path}

	bare, err := ConnectWithOptions(cfg, ConnectOptions{})
	require.NoError(t, err)
	assert.False(t, bare.Migrator().HasTable(&models.Event{}))
	closeDB(t, bare)

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(t, db) })
	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Event{}))
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	_ = sqlDB.Close()
}
