package repository

import (
	"context"
	"time"

	"blueroom/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines data access for chat history.
type MessageRepository interface {
	Append(ctx context.Context, msg *models.Message) error
	ListByRoom(ctx context.Context, roomID uint, since time.Time) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListByRoom returns the room's messages at or after since in ascending
// timestamp order, with the sending participation and user preloaded.
// A zero since returns the whole history.
func (r *messageRepository) ListByRoom(ctx context.Context, roomID uint, since time.Time) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Preload("Participation.User").
		Joins("JOIN participations ON participations.id = messages.participation_id").
		Where("participations.room_id = ?", roomID)
	if !since.IsZero() {
		q = q.Where("messages.timestamp >= ?", since)
	}

	var out []models.Message
	err := q.Order("messages.timestamp ASC, messages.id ASC").Find(&out).Error
	return out, err
}
