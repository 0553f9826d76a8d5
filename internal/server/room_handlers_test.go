package server

import (
	"fmt"
	"net/http"
	"testing"

	"blueroom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createRoom(t *testing.T, token string, body map[string]any) models.Room {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/api/rooms/", token, body)
	require.Equal(t, http.StatusCreated, status, string(raw))
	return decode[models.Room](t, raw)
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	aliceTok, bobTok, carolTok := tokenFor(t, alice), tokenFor(t, bob), tokenFor(t, carol)

	require.NoError(t, env.server.db.Create(&models.Subject{Name: "Physics"}).Error)

	room := env.createRoom(t, aliceTok, map[string]any{
		"title":      "Optics study group",
		"enable_mic": true,
		"subjects":   []uint{1},
	})
	assert.True(t, room.IsActive)
	assert.Equal(t, 1, room.Members)
	base := fmt.Sprintf("/api/rooms/%d", room.ID)

	// the owner cannot open a second room
	status, body := env.do(t, http.MethodPost, "/api/rooms/", aliceTok, map[string]any{"title": "Another"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeAlreadyBusy, errorCode(t, body))

	status, body = env.do(t, http.MethodGet, "/api/rooms/active?q=optics", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Room](t, body), 1)

	status, body = env.do(t, http.MethodGet, "/api/rooms/active?q=physics", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Room](t, body), 1, "falls back to subject names")

	status, body = env.do(t, http.MethodPost, base+"/join", bobTok, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	p := decode[models.Participation](t, body)
	assert.True(t, p.MicAllow)
	assert.True(t, p.ChatAllow)

	status, body = env.do(t, http.MethodPost, base+"/join", carolTok, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(t, http.MethodGet, base+"/members", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Member](t, body), 3)

	status, body = env.do(t, http.MethodGet, base, bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[models.Room](t, body)
	assert.Equal(t, 3, got.Members)
	assert.Equal(t, 3, got.MembersMax)
	require.Len(t, got.Subjects, 1)

	// only the owner manages participants
	status, body = env.do(t, http.MethodPost, fmt.Sprintf("%s/participants/%d/block", base, carol.ID), bobTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, body))

	status, body = env.do(t, http.MethodPut, fmt.Sprintf("%s/participants/%d", base, bob.ID), aliceTok,
		map[string]any{"chat_allow": false})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.False(t, decode[models.Participation](t, body).ChatAllow)

	status, body = env.do(t, http.MethodPost, base+"/mic", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"mic_allow":false}`, string(body))

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("%s/participants/%d/block", base, carol.ID), aliceTok, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/join", carolTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, body))

	status, _ = env.do(t, http.MethodPost, base+"/leave", bobTok, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/leave", bobTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeNotParticipant, errorCode(t, body))

	// the owner leaving closes the room
	status, _ = env.do(t, http.MethodPost, base+"/leave", aliceTok, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/join", bobTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeRoomInactive, errorCode(t, body))

	status, body = env.do(t, http.MethodGet, "/api/rooms/active", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	closed := decode[models.Room](t, func() []byte {
		_, raw := env.do(t, http.MethodGet, base, bobTok, nil)
		return raw
	}())
	assert.False(t, closed.IsActive)
	assert.Equal(t, 1, closed.Members)
	assert.Equal(t, 3, closed.MembersMax)
}

func TestCreateRoom_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := tokenFor(t, env.user(t, "alice"))

	status, body := env.do(t, http.MethodPost, "/api/rooms/", tok, map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	status, body = env.do(t, http.MethodPost, "/api/rooms/", tok, map[string]any{"title": "Room", "subjects": []uint{42}})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, errorCode(t, body))

	status, _ = env.do(t, http.MethodGet, "/api/rooms/999", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/api/rooms/999/join", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateRoom(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.user(t, "alice"), env.user(t, "bob")
	room := env.createRoom(t, tokenFor(t, alice), map[string]any{"title": "Draft"})
	path := fmt.Sprintf("/api/rooms/%d", room.ID)

	status, _ := env.do(t, http.MethodPut, path, tokenFor(t, bob), map[string]any{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, http.MethodPut, path, tokenFor(t, alice), map[string]any{
		"title":      "Final",
		"is_private": true,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	updated := decode[models.Room](t, body)
	assert.Equal(t, "Final", updated.Title)
	assert.True(t, updated.IsPrivate)
}
