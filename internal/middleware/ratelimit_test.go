package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"blueroom/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuotaRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestQuotaTake(t *testing.T) {
	q := Quota{Action: "send_chat", Limit: 2, Window: time.Minute}

	tests := []struct {
		name    string
		env     string
		noStore bool
		calls   int
		allowed bool
		wantErr bool
	}{
		{name: "exempt in test", env: "test", calls: 5, allowed: true},
		{name: "exempt in development", env: "development", calls: 5, allowed: true},
		{name: "within quota", env: "production", calls: 2, allowed: true},
		{name: "over quota", env: "production", calls: 3, allowed: false},
		{name: "no store", env: "production", noStore: true, calls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			var rdb *redis.Client
			if !tt.noStore {
				_, rdb = newQuotaRedis(t)
			}

			var (
				ok  bool
				err error
			)
			for i := 0; i < tt.calls; i++ {
				ok, _, err = q.Take(context.Background(), rdb, "user:7")
			}
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, ok)
		})
	}
}

func TestQuotaTake_WindowResets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newQuotaRedis(t)
	ctx := context.Background()
	q := Quota{Action: "create_room", Limit: 1, Window: 10 * time.Minute}

	ok, _, err := q.Take(ctx, rdb, "user:1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, retryIn, err := q.Take(ctx, rdb, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, (10 * time.Minute).Seconds(), retryIn.Seconds(), 1)

	// another caller has its own counter
	ok, _, err = q.Take(ctx, rdb, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(10*time.Minute + time.Second)
	ok, _, err = q.Take(ctx, rdb, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaTake_RestoresLostExpiry(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newQuotaRedis(t)
	q := Quota{Action: "login", Limit: 1, Window: time.Minute}

	require.NoError(t, mr.Set(quotaKey(q.Action, "ip:10.0.0.1"), "5"))

	ok, retryIn, err := q.Take(context.Background(), rdb, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryIn)
	assert.Equal(t, time.Minute, mr.TTL(quotaKey(q.Action, "ip:10.0.0.1")))
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, rdb := newQuotaRedis(t)

	app := fiber.New()
	app.Post("/rooms/:id/messages",
		func(c *fiber.Ctx) error {
			if c.Get("X-User") != "" {
				c.Locals("userID", uint(42))
			}
			return c.Next()
		},
		RateLimit(rdb, Quota{Action: "send_chat", Limit: 1, Window: time.Minute}),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) },
	)

	send := func(asUser bool) (int, string, string) {
		req := httptest.NewRequest(fiber.MethodPost, "/rooms/1/messages", nil)
		if asUser {
			req.Header.Set("X-User", "1")
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		var body models.ErrorResponse
		if resp.StatusCode != fiber.StatusCreated {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		}
		return resp.StatusCode, body.Code, resp.Header.Get(fiber.HeaderRetryAfter)
	}

	status, _, _ := send(true)
	assert.Equal(t, fiber.StatusCreated, status)

	status, code, retryAfter := send(true)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, models.CodeRateLimited, code)
	assert.Equal(t, "60", retryAfter)

	// anonymous callers are counted by IP, apart from the user
	status, _, _ = send(false)
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestRateLimit_FailsOpenWithoutStore(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	app := fiber.New()
	app.Get("/", RateLimit(nil, Quota{Action: "login", Limit: 1, Window: time.Minute}),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
