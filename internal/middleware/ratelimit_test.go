package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRateLimiter(rdb, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := l.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "login", "ip:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRateLimiter(rdb, true)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "invite", "user:1", 1, time.Minute)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "invite", "user:1", 1, time.Minute)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, _ = l.Allow(ctx, "invite", "user:1", 1, time.Minute)
	assert.True(t, ok)
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(nil, false)
	ok, err := l.Allow(context.Background(), "x", "y", 0, time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_Middleware(t *testing.T) {
	tests := []struct {
		name     string
		limiter  *RateLimiter
		policy   FailPolicy
		statuses []int
	}{
		{
			name:     "Limit reached",
			limiter:  func() *RateLimiter { _, rdb := newTestRedis(t); return NewRateLimiter(rdb, true) }(),
			policy:   FailOpen,
			statuses: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "Fail open without redis",
			limiter:  NewRateLimiter(nil, true),
			policy:   FailOpen,
			statuses: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
		{
			name:     "Fail closed without redis",
			limiter:  NewRateLimiter(nil, true),
			policy:   FailClosed,
			statuses: []int{http.StatusServiceUnavailable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/x", tt.limiter.LimitWithPolicy("x", 2, time.Minute, tt.policy), func(c *fiber.Ctx) error {
				return c.SendStatus(http.StatusOK)
			})

			for _, want := range tt.statuses {
				resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
				require.NoError(t, err)
				_ = resp.Body.Close()
				assert.Equal(t, want, resp.StatusCode)
			}
		})
	}
}
