package database

import (
	"context"
	"testing"
	"time"

	"calendarapp/internal/config"
	"calendarapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "calendar",
				"POSTGRES_PASSWORD": "calendar",
				"POSTGRES_DB":       "calendar",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(ctx) })

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return &config.Config{
		Env:          "test",
		DBDriver:     DriverPostgres,
		DBHost:       host,
		DBPort:       port.Port(),
		DBUser:       "calendar",
		DBPassword:   "calendar",
		DBName:       "calendar",
		DBSSLMode:    "disable",
		DBSchemaMode: SchemaModeSQL,
	}
}

func TestPostgres_MigrationsAndCascade(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	db, err := Connect(cfg)
	require.NoError(t, err)

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, status.AppliedVersions)
	assert.Empty(t, status.PendingMigrations)

	user := models.User{Email: "owner@example.com", AuthProvider: models.AuthProviderLocal}
	require.NoError(t, db.Create(&user).Error)

	end := models.NewDate(2024, 1, 12)
	event := models.Event{
		Title:           "Offsite",
		Date:            models.NewDate(2024, 1, 10),
		EndDate:         &end,
		Color:           "blue",
		Recurrence:      "none",
		ReminderEnabled: true,
		ReminderMinutes: 30,
		UserID:          user.ID,
	}
	require.NoError(t, db.Create(&event).Error)

	var loaded models.Event
	require.NoError(t, db.First(&loaded, event.ID).Error)
	assert.Equal(t, "2024-01-10", loaded.Date.String())
	require.NotNil(t, loaded.EndDate)
	assert.Equal(t, "2024-01-12", loaded.EndDate.String())

	require.NoError(t, db.Exec("DELETE FROM users WHERE id = ?", user.ID).Error)
	var remaining int64
	require.NoError(t, db.Model(&models.Event{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	latest, err := RollbackLatest(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
	require.NoError(t, RunMigrations(ctx, db))
}
