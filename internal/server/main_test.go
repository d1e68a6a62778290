package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-key-12345678901234567890123456789012"
	testPassword = "Sup3r$ecretPass"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		JWTSecret:      testSecret,
		JWTTTLHours:    1,
		DBDriver:       "sqlite",
		AllowedOrigins: "*",
	}
}

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	s, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.hub.Shutdown(t.Context())
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return s, s.App()
}

// doJSON sends body (if any) as JSON and returns the status and raw response body.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type session struct {
	ID    uint
	Token string
}

// signup registers name through the API and returns its id and token.
func signup(t *testing.T, app *fiber.App, name string) session {
	t.Helper()
	status, raw := doJSON(t, app, http.MethodPost, "/signup", "", SignupRequest{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	res := decode[struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}](t, raw)
	require.NotEmpty(t, res.Token)
	return session{ID: res.User.ID, Token: res.Token}
}

// befriend runs the invite/accept flow between a and b and returns the thread id.
func befriend(t *testing.T, app *fiber.App, a, b session) uint {
	t.Helper()
	status, raw := doJSON(t, app, http.MethodPatch, "/invite", a.Token, FriendRequest{FriendID: b.ID})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = doJSON(t, app, http.MethodPatch, "/friend", b.Token, FriendRequest{FriendID: a.ID})
	require.Equal(t, http.StatusOK, status, string(raw))

	res := decode[struct {
		Thread models.Thread `json:"thread"`
	}](t, raw)
	require.NotZero(t, res.Thread.ID)
	return res.Thread.ID
}
