package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"calendarapp/internal/cache"
	"calendarapp/internal/config"
	"calendarapp/internal/database"
	"calendarapp/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	redis  *miniredis.Miniredis
}

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

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "test",
		JWTSecret:         testSecret,
		SessionCookieName: "session",
		SessionTTLHours:   1,
		AllowedOrigins:    "http://localhost:5173",
		FrontendURL:       "http://localhost:5173",
		PublicBaseURL:     "http://api.test",
		UploadDir:         t.TempDir(),
		AvatarMaxUploadMB: 1,
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		cache.SetClient(nil)
	})

	db := setupTestDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{server: s, app: s.App(), db: db, redis: mr}
}

// request sends body as JSON. A non-empty token is sent as the session cookie.
func (e *testEnv) request(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

type authBody struct {
	ID           *uint  `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	AvatarURL    string `json:"avatarUrl"`
	AuthProvider string `json:"authProvider"`
	Token        string `json:"token"`
	Message      string `json:"message"`
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// register creates an account through the API and returns its id and session token.
func (e *testEnv) register(t *testing.T, email, password, name string) (uint, string) {
	t.Helper()
	resp, data := e.request(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": password, "displayName": name,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	body := decode[authBody](t, data)
	require.NotNil(t, body.ID, body.Message)
	require.NotEmpty(t, body.Token)
	return *body.ID, body.Token
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

type stubVerifier struct {
	identity service.GoogleIdentity
}

func (s stubVerifier) Verify(_ context.Context, credential string) (service.GoogleIdentity, error) {
	if credential != "valid-token" {
		return service.GoogleIdentity{}, errors.New("bad token")
	}
	return s.identity, nil
}
