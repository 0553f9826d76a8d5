package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"blueroom/internal/cache"
	"blueroom/internal/middleware"
	"blueroom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "  Alice@Example.com ",
		"password": "Str0ng!Passw0rd",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	signup := decode[authResponse](t, body)
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "alice", signup.User.Username)
	assert.Equal(t, "alice@example.com", signup.User.Email)
	assert.NotContains(t, string(body), "Str0ng!Passw0rd")

	claims, err := middleware.ParseAccessToken(testSecret, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, claims.UserID)

	t.Run("login by email", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "Str0ng!Passw0rd",
		})
		require.Equal(t, http.StatusOK, status, string(body))
		assert.NotEmpty(t, decode[authResponse](t, body).Token)
	})

	t.Run("login by username", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "Str0ng!Passw0rd",
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("wrong password", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))
	})

	t.Run("unknown account", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "ghost@example.com",
			"password": "Str0ng!Passw0rd",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("duplicate", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "Str0ng!Passw0rd",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, models.CodeConflict, errorCode(t, body))
	})
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]map[string]string{
		"missing fields": {"username": "bob"},
		"weak password":  {"username": "bob", "email": "bob@example.com", "password": "short"},
		"bad email":      {"username": "bob", "email": "bob", "password": "Str0ng!Passw0rd"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", req)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, errorCode(t, body))
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	status, _ := env.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	wrongSecret, err := middleware.IssueAccessToken("another-secret-that-is-long-enough!!", alice.ID, alice.Username, time.Now())
	require.NoError(t, err)
	status, _ = env.do(t, http.MethodGet, "/api/users/me", wrongSecret, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, http.MethodGet, "/api/users/me", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, decode[models.User](t, body).ID)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	token := tokenFor(t, alice)

	status, _ := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	claims, err := middleware.ParseAccessToken(testSecret, token)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(cache.BlacklistKey(claims.JTI)))

	status, body := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "revoked")

	// a fresh token still works
	status, _ = env.do(t, http.MethodGet, "/api/users/me", tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	status, body := env.do(t, http.MethodPost, "/api/ws/ticket", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, status, string(body))
	issued := decode[struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}](t, body)
	require.NotEmpty(t, issued.Ticket)
	assert.Equal(t, int(cache.WSTicketTTL.Seconds()), issued.ExpiresIn)

	stored, err := env.rdb.Get(context.Background(), cache.WSTicketKey(issued.Ticket)).Result()
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(alice.ID), 10), stored)

	// the ticket authenticates; the plain GET is then refused for not upgrading
	status, _ = env.do(t, http.MethodGet, "/api/ws/rooms?ticket="+issued.Ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.False(t, env.mr.Exists(cache.WSTicketKey(issued.Ticket)))

	status, body = env.do(t, http.MethodGet, "/api/ws/rooms?ticket="+issued.Ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "ticket")
}

func TestWSTicket_Expires(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	status, body := env.do(t, http.MethodPost, "/api/ws/ticket", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, status)
	ticket := decode[map[string]any](t, body)["ticket"].(string)

	env.mr.FastForward(cache.WSTicketTTL + time.Second)

	status, _ = env.do(t, http.MethodGet, "/api/ws/rooms?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWSTicket_RequiresRedis(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	env.server.redis = nil

	req := httptest.NewRequest(http.MethodPost, "/api/ws/ticket", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, alice))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
