package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"blueroom/internal/models"
	"blueroom/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	b := f.user(t, "pupil")
	room := f.room(t, owner, "Reading")
	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)

	first, err := f.chat.Send(ctx, owner.ID, room.ID, "Welcome", "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageText, first.Type)
	assert.Equal(t, "tutor", first.User.Username)

	_, err = f.chat.Send(ctx, b.ID, room.ID, "https://example.com/notes", models.MessageLink)
	require.NoError(t, err)

	history, err := f.chat.History(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Welcome", history[0].Message)
	assert.Equal(t, "pupil", history[1].User.Username)
	assert.Equal(t, models.MessageLink, history[1].Type)

	types := f.pub.types(t, notifications.RoomTopic(room.ID))
	assert.Equal(t, 2, countOf(types, notifications.FrameChatMessage))

	_, err = f.chat.History(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestChatService_SendRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	b := f.user(t, "pupil")
	outsider := f.user(t, "outsider")
	room := f.room(t, owner, "Writing")
	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)

	_, err = f.chat.Send(ctx, outsider.ID, room.ID, "hello", "")
	assert.True(t, models.IsCode(err, models.CodeNotParticipant))

	_, err = f.chat.Send(ctx, b.ID, room.ID, "hello", "video")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = f.chat.Send(ctx, b.ID, room.ID, "   ", "")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	no := false
	_, err = f.rooms.SetPermissions(ctx, owner.ID, room.ID, b.ID, PermissionsInput{ChatAllow: &no})
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, b.ID, room.ID, "hello", "")
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	history, err := f.chat.History(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChatService_HistorySurvivesLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	b := f.user(t, "pupil")
	room := f.room(t, owner, "Archive")
	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, b.ID, room.ID, "bye", "")
	require.NoError(t, err)
	require.NoError(t, f.rooms.Leave(ctx, b.ID, room.ID))

	history, err := f.chat.History(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "pupil", history[0].User.Username)
}

func TestChatService_ShareFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	room := f.room(t, owner, "Files")

	shared, err := f.chat.ShareFile(ctx, owner.ID, room.ID, "../Worksheet.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(shared.URL, "/uploads/shared/"))
	assert.True(t, strings.HasSuffix(shared.URL, ".pdf"))
	assert.Equal(t, "File shared: Worksheet.PDF", shared.Entry.Message)
	assert.Equal(t, models.MessageFile, shared.Entry.Type)

	onDisk := filepath.Join(f.chat.uploadDir, strings.TrimPrefix(shared.URL, "/uploads/"))
	content, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	_, err = f.chat.ShareFile(ctx, owner.ID, room.ID, "empty.txt", nil)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = f.chat.ShareFile(ctx, owner.ID, room.ID, "big.bin", make([]byte, MaxSharedFileBytes+1))
	assert.True(t, models.IsCode(err, models.CodeValidation))

	outsider := f.user(t, "outsider")
	_, err = f.chat.ShareFile(ctx, outsider.ID, room.ID, "notes.txt", []byte("x"))
	assert.True(t, models.IsCode(err, models.CodeNotParticipant))
}

func TestChatMessageFrameShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	room := f.room(t, owner, "Frames")

	_, err := f.chat.Send(ctx, owner.ID, room.ID, "ping", "")
	require.NoError(t, err)

	f.pub.mu.Lock()
	last := f.pub.events[len(f.pub.events)-1]
	f.pub.mu.Unlock()

	var frame map[string]any
	require.NoError(t, json.Unmarshal(last.Payload, &frame))
	assert.Equal(t, "chat_message", frame["type"])
	assert.Equal(t, "ping", frame["message"])
	assert.Equal(t, "text", frame["message_type"])
	user, ok := frame["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tutor", user["username"])
}

func countOf(items []string, want string) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

func TestChatService_SendRacingLeaveNeverOutlivesParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "tutor")
	room := f.room(t, owner, "Racing")

	for i := range 10 {
		student := f.user(t, fmt.Sprintf("student%d", i))
		_, err := f.rooms.Join(ctx, student.ID, room.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 20 {
				_, err := f.chat.Send(ctx, student.ID, room.ID, "hi", models.MessageText)
				if err != nil {
					assert.True(t, models.IsCode(err, models.CodeNotParticipant), err.Error())
				}
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.rooms.Leave(ctx, student.ID, room.ID))
		}()
		wg.Wait()
	}

	var msgs []models.Message
	require.NoError(t, f.db.Preload("Participation").Find(&msgs).Error)
	for _, m := range msgs {
		require.NotNil(t, m.Participation)
		if m.Participation.TimeOut != nil {
			assert.False(t, m.Timestamp.After(*m.Participation.TimeOut),
				"message %d written after participation %d closed", m.ID, m.ParticipationID)
		}
	}
}
