package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"blueroom/internal/models"
	"blueroom/internal/repository"
	"blueroom/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type published struct {
	Topic   string
	Payload []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Payload: payload})
	return nil
}

// types returns the "type" field of every event published to topic.
func (p *recordingPublisher) types(t *testing.T, topic string) []string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, ev := range p.events {
		if ev.Topic != topic {
			continue
		}
		var frame struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(ev.Payload, &frame))
		out = append(out, frame.Type)
	}
	return out
}

type fixture struct {
	db    *gorm.DB
	store *repository.Store
	pub   *recordingPublisher
	rooms *RoomService
	chat  *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db, nil)
	pub := &recordingPublisher{}
	return &fixture{
		db:    db,
		store: store,
		pub:   pub,
		rooms: NewRoomService(store, pub),
		chat:  NewChatService(store, pub, t.TempDir()),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	return testutil.CreateUser(t, f.db, name)
}

func (f *fixture) room(t *testing.T, owner *models.User, title string) *models.Room {
	t.Helper()
	room, err := f.rooms.CreateRoom(context.Background(), owner.ID, CreateRoomInput{Title: title, EnableMic: true})
	require.NoError(t, err)
	return room
}

func (f *fixture) reloadRoom(t *testing.T, id uint) *models.Room {
	return testutil.Reload[models.Room](t, f.db, id)
}

func (f *fixture) reloadUser(t *testing.T, id uint) *models.User {
	return testutil.Reload[models.User](t, f.db, id)
}
