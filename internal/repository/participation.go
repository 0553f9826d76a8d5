package repository

import (
	"context"
	"errors"
	"time"

	"blueroom/internal/models"

	"gorm.io/gorm"
)

// ParticipationRepository defines data access for room occupancy records.
type ParticipationRepository interface {
	GetOpen(ctx context.Context, userID, roomID uint) (*models.Participation, error)
	GetOpenByUser(ctx context.Context, userID uint) (*models.Participation, error)
	GetLatest(ctx context.Context, userID, roomID uint) (*models.Participation, error)
	Create(ctx context.Context, p *models.Participation) error
	Close(ctx context.Context, id uint, at time.Time, blocked bool) error
	UpdateFlags(ctx context.Context, id uint, micAllow, chatAllow bool) error
	ListOpenByRoom(ctx context.Context, roomID uint) ([]models.Participation, error)
	CountOpenByUser(ctx context.Context, userID uint) (int64, error)
}

type participationRepository struct {
	db *gorm.DB
}

// NewParticipationRepository creates a new participation repository.
func NewParticipationRepository(db *gorm.DB) ParticipationRepository {
	return &participationRepository{db: db}
}

func (r *participationRepository) first(q *gorm.DB) (*models.Participation, error) {
	var p models.Participation
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOpen returns the open participation of the pair, or (nil, nil).
func (r *participationRepository) GetOpen(ctx context.Context, userID, roomID uint) (*models.Participation, error) {
	return r.first(r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ? AND time_out IS NULL", userID, roomID).
		Order("id DESC"))
}

// GetOpenByUser returns the user's open participation in any room, or (nil, nil).
func (r *participationRepository) GetOpenByUser(ctx context.Context, userID uint) (*models.Participation, error) {
	return r.first(r.db.WithContext(ctx).
		Where("user_id = ? AND time_out IS NULL", userID).
		Order("id DESC"))
}

// GetLatest returns the most recent participation of the pair, open or not, or (nil, nil).
func (r *participationRepository) GetLatest(ctx context.Context, userID, roomID uint) (*models.Participation, error) {
	return r.first(r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Order("time_in DESC, id DESC"))
}

func (r *participationRepository) Create(ctx context.Context, p *models.Participation) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Close stamps time_out on an open participation and, when blocked, sets the block marker.
func (r *participationRepository) Close(ctx context.Context, id uint, at time.Time, blocked bool) error {
	updates := map[string]any{"time_out": at}
	if blocked {
		updates["is_blocked"] = true
	}
	res := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("id = ? AND time_out IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Open participation", id)
	}
	return nil
}

func (r *participationRepository) UpdateFlags(ctx context.Context, id uint, micAllow, chatAllow bool) error {
	return r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("id = ?", id).
		Updates(map[string]any{"mic_allow": micAllow, "chat_allow": chatAllow}).Error
}

// ListOpenByRoom returns the open participations of a room with their users, earliest first.
func (r *participationRepository) ListOpenByRoom(ctx context.Context, roomID uint) ([]models.Participation, error) {
	var out []models.Participation
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ? AND time_out IS NULL", roomID).
		Order("time_in ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *participationRepository) CountOpenByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("user_id = ? AND time_out IS NULL", userID).
		Count(&n).Error
	return n, err
}
