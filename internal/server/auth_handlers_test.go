package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	_, app := newTestServer(t)

	status, raw := doJSON(t, app, http.MethodPost, "/signup", "", SignupRequest{
		Name: "alice", Email: " Alice@Example.com ", Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	res := decode[struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}](t, raw)
	assert.Equal(t, "alice", res.User.Name)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token)
	assert.NotContains(t, string(raw), "password")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"duplicate email", SignupRequest{Name: "alice2", Email: "alice@example.com", Password: testPassword}, http.StatusConflict, models.CodeConflict},
		{"weak password", SignupRequest{Name: "bob", Email: "bob@example.com", Password: "short"}, http.StatusBadRequest, models.CodeValidation},
		{"bad email", SignupRequest{Name: "bob", Email: "not-an-email", Password: testPassword}, http.StatusBadRequest, models.CodeValidation},
		{"missing name", SignupRequest{Email: "bob@example.com", Password: testPassword}, http.StatusBadRequest, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := doJSON(t, app, http.MethodPost, "/signup", "", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, decode[models.ErrorResponse](t, raw).Code)
		})
	}
}

func TestSignup_MalformedBody(t *testing.T) {
	_, app := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/signup", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")

	status, raw := doJSON(t, app, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, status, string(raw))
	res := decode[struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}](t, raw)
	assert.Equal(t, alice.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{"wrong password", LoginRequest{Email: "alice@example.com", Password: "Wr0ng$Password"}, http.StatusUnauthorized},
		{"unknown email", LoginRequest{Email: "nobody@example.com", Password: testPassword}, http.StatusUnauthorized},
		{"empty", LoginRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := doJSON(t, app, http.MethodPost, "/login", "", tt.body)
			assert.Equal(t, tt.wantStatus, status, string(raw))
		})
	}
}

func TestValidate(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")

	t.Run("bearer token", func(t *testing.T) {
		status, raw := doJSON(t, app, http.MethodGet, "/validate", alice.Token, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		res := decode[struct {
			User  models.User `json:"user"`
			Token string      `json:"token"`
		}](t, raw)
		assert.Equal(t, alice.ID, res.User.ID)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("legacy auth header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/validate", nil)
		req.Header.Set("auth", alice.Token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	rejected := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic " + alice.Token},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/validate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}
