package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"blueroom/internal/models"
	"blueroom/internal/notifications"
	"blueroom/internal/repository"
	"blueroom/internal/validation"

	"github.com/google/uuid"
)

// MaxSharedFileBytes bounds a file shared into a room.
const MaxSharedFileBytes = 10 << 20

// ChatService stores room chat and publishes it to the room topic.
type ChatService struct {
	store     *repository.Store
	pub       Publisher
	uploadDir string
	now       func() time.Time
}

// SharedFile is a file shared into a room together with its chat line.
type SharedFile struct {
	Entry models.ChatEntry `json:"message"`
	URL   string           `json:"url"`
}

// NewChatService returns a new ChatService. Shared files are written below
// uploadDir. A nil pub discards events.
func NewChatService(store *repository.Store, pub Publisher, uploadDir string) *ChatService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &ChatService{
		store:     store,
		pub:       pub,
		uploadDir: uploadDir,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// History returns the room's messages oldest first with their senders' profiles.
func (s *ChatService) History(ctx context.Context, roomID uint) ([]models.ChatEntry, error) {
	if _, err := s.store.Rooms.GetByID(ctx, roomID); err != nil {
		return nil, asAppError(err)
	}
	msgs, err := s.store.Messages.ListByRoom(ctx, roomID, time.Time{})
	if err != nil {
		return nil, asAppError(err)
	}
	entries := make([]models.ChatEntry, 0, len(msgs))
	for i := range msgs {
		entries = append(entries, msgs[i].Entry())
	}
	return entries, nil
}

// Send appends a message to the sender's open participation in the room and
// broadcasts it as a chat_message.
func (s *ChatService) Send(ctx context.Context, userID, roomID uint, content string, typ models.MessageType) (*models.ChatEntry, error) {
	if typ == "" {
		typ = models.MessageText
	}
	if !typ.Valid() {
		return nil, models.NewValidationError("message_type must be one of text, file, link")
	}
	if err := validation.ValidateChatContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return s.append(ctx, userID, roomID, content, typ)
}

// ShareFile stores an uploaded file and records it as a file message in the room.
func (s *ChatService) ShareFile(ctx context.Context, userID, roomID uint, filename string, content []byte) (*SharedFile, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, models.NewValidationError("file name is required")
	}
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if len(content) > MaxSharedFileBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", MaxSharedFileBytes>>20))
	}
	if _, err := chattable(ctx, s.store, userID, roomID); err != nil {
		return nil, err
	}

	rel := filepath.ToSlash(filepath.Join("shared", uuid.NewString()+strings.ToLower(filepath.Ext(name))))
	if err := writeBytesToFile(filepath.Join(s.uploadDir, rel), content); err != nil {
		return nil, models.NewInternalError(err)
	}

	entry, err := s.append(ctx, userID, roomID, fmt.Sprintf("File shared: %s", name), models.MessageFile)
	if err != nil {
		cleanupFiles([]string{filepath.Join(s.uploadDir, rel)})
		return nil, err
	}
	return &SharedFile{Entry: *entry, URL: "/uploads/" + rel}, nil
}

// chattable returns the user's open participation when they may post in the room.
func chattable(ctx context.Context, store *repository.Store, userID, roomID uint) (*models.Participation, error) {
	open, err := store.Participations.GetOpen(ctx, userID, roomID)
	if err != nil {
		return nil, asAppError(err)
	}
	if open == nil {
		return nil, models.NewNotParticipantError(roomID)
	}
	if !open.ChatAllow {
		return nil, models.NewForbiddenError("Chat is disabled for you in this room")
	}
	return open, nil
}

func (s *ChatService) append(ctx context.Context, userID, roomID uint, content string, typ models.MessageType) (*models.ChatEntry, error) {
	// The room row lock orders the insert against leave, block and close,
	// so a message never lands on a participation that has already ended.
	var msg *models.Message
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Rooms.GetForUpdate(ctx, roomID); err != nil {
			return err
		}
		open, err := chattable(ctx, tx, userID, roomID)
		if err != nil {
			return err
		}
		msg = &models.Message{
			ParticipationID: open.ID,
			Content:         content,
			Type:            typ,
			Timestamp:       s.now(),
		}
		return tx.Messages.Append(ctx, msg)
	})
	if err != nil {
		return nil, asAppError(err)
	}

	profile, err := s.store.Users.GetProfile(ctx, userID)
	if err != nil {
		return nil, asAppError(err)
	}
	entry := models.ChatEntry{
		ID:        msg.ID,
		Message:   msg.Content,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
		User:      profile,
	}
	publish(ctx, s.pub, notifications.RoomTopic(roomID), notifications.NewChatMessageFrame(entry))
	return &entry, nil
}
