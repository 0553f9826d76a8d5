package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blueroom/internal/models"
	"blueroom/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upload posts a single-file multipart form and returns the status and body.
func (e *testEnv) upload(t *testing.T, path, token, field, filename string, content []byte, fields map[string]string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestRoomChatOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")
	room := env.createRoom(t, tokenFor(t, alice), map[string]any{"title": "Chat room"})
	base := fmt.Sprintf("/api/rooms/%d", room.ID)

	status, body := env.do(t, http.MethodGet, base+"/messages", tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, body = env.do(t, http.MethodPost, base+"/messages", tokenFor(t, bob), map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeNotParticipant, errorCode(t, body))

	status, _ = env.do(t, http.MethodPost, base+"/join", tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/messages", tokenFor(t, bob), map[string]any{"content": "hello"})
	require.Equal(t, http.StatusCreated, status, string(body))
	entry := decode[models.ChatEntry](t, body)
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, models.MessageText, entry.Type)
	assert.Equal(t, "bob", entry.User.Username)

	status, body = env.do(t, http.MethodPost, base+"/messages", tokenFor(t, alice), map[string]any{
		"content":      "https://example.com/notes",
		"message_type": "link",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = env.do(t, http.MethodPost, base+"/messages", tokenFor(t, alice), map[string]any{
		"content":      "x",
		"message_type": "video",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	status, body = env.do(t, http.MethodPost, base+"/messages", tokenFor(t, alice), map[string]any{
		"content": strings.Repeat("a", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	// history is readable by anyone, oldest first
	status, body = env.do(t, http.MethodGet, base+"/messages", tokenFor(t, carol), nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]models.ChatEntry](t, body)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Message)
	assert.Equal(t, models.MessageLink, history[1].Type)
}

func TestShareRoomFile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	tok := tokenFor(t, alice)
	room := env.createRoom(t, tok, map[string]any{"title": "Files"})
	path := fmt.Sprintf("/api/rooms/%d/share", room.ID)

	status, body := env.upload(t, path, tok, "file", "notes.txt", []byte("chapter 1"), nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	shared := decode[service.SharedFile](t, body)
	assert.True(t, strings.HasPrefix(shared.URL, "/uploads/shared/"), shared.URL)
	assert.True(t, strings.HasSuffix(shared.URL, ".txt"), shared.URL)
	assert.Equal(t, models.MessageFile, shared.Entry.Type)
	assert.Contains(t, shared.Entry.Message, "notes.txt")

	onDisk := filepath.Join(env.server.imageService.UploadDir(), strings.TrimPrefix(shared.URL, "/uploads/"))
	content, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "chapter 1", string(content))

	status, body = env.upload(t, path, tok, "", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	outsider := tokenFor(t, env.user(t, "bob"))
	status, body = env.upload(t, path, outsider, "file", "x.txt", []byte("x"), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeNotParticipant, errorCode(t, body))
}
