package repository

import (
	"context"
	"strings"
	"time"

	"blueroom/internal/models"

	"gorm.io/gorm"
)

// RoomRepository defines data access for rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id uint) (*models.Room, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Room, error)
	Save(ctx context.Context, room *models.Room) error
	ReplaceSubjects(ctx context.Context, room *models.Room, subjects []models.Subject) error
	ListActive(ctx context.Context, query string) ([]models.Room, error)
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	CountPrivate(ctx context.Context) (int64, error)
	ListCreatedBetween(ctx context.Context, start, end time.Time) ([]models.Room, error)
	ListPopular(ctx context.Context, n int) ([]models.Room, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Background").
		Preload("Subjects")
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return translateError(r.db.WithContext(ctx).Create(room).Error, "Room", room.Title)
}

func (r *roomRepository) GetByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := r.withDetails(ctx).First(&room, id).Error; err != nil {
		return nil, translateError(err, "Room", id)
	}
	return &room, nil
}

// GetForUpdate loads the bare row, locked on postgres, for a lifecycle transition.
func (r *roomRepository) GetForUpdate(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := forUpdate(r.db.WithContext(ctx)).First(&room, id).Error; err != nil {
		return nil, translateError(err, "Room", id)
	}
	return &room, nil
}

// Save writes every mutable column, zero values included.
func (r *roomRepository) Save(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Model(room).
		Select("title", "description", "is_private", "is_active", "enable_mic",
			"members", "members_max", "background_id").
		Updates(room).Error
}

func (r *roomRepository) ReplaceSubjects(ctx context.Context, room *models.Room, subjects []models.Subject) error {
	return r.db.WithContext(ctx).Model(room).Association("Subjects").Replace(subjects)
}

// ListActive returns active rooms newest first. A non-empty query matches the
// title; when no title matches it falls back to matching subject names.
func (r *roomRepository) ListActive(ctx context.Context, query string) ([]models.Room, error) {
	var rooms []models.Room
	base := func() *gorm.DB {
		return r.withDetails(ctx).Where("rooms.is_active = ?", true).Order("rooms.created_at DESC, rooms.id DESC")
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		err := base().Find(&rooms).Error
		return rooms, err
	}

	pattern := "%" + query + "%"
	if err := base().Where("LOWER(rooms.title) LIKE ?", pattern).Find(&rooms).Error; err != nil {
		return nil, err
	}
	if len(rooms) > 0 {
		return rooms, nil
	}

	err := base().
		Where("rooms.id IN (?)", r.db.WithContext(ctx).
			Table("room_subjects").
			Select("room_subjects.room_id").
			Joins("JOIN subjects ON subjects.id = room_subjects.subject_id").
			Where("LOWER(subjects.name) LIKE ?", pattern)).
		Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Room{}).Count(&n).Error
	return n, err
}

func (r *roomRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Room{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

func (r *roomRepository) CountPrivate(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Room{}).Where("is_private = ?", true).Count(&n).Error
	return n, err
}

// ListCreatedBetween returns rooms with start <= created_at < end, oldest first.
func (r *roomRepository) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]models.Room, error) {
	var rooms []models.Room
	err := r.withDetails(ctx).
		Where("rooms.created_at >= ? AND rooms.created_at < ?", start, end).
		Order("rooms.created_at ASC").
		Find(&rooms).Error
	return rooms, err
}

// ListPopular returns the n rooms with the highest occupancy high-water mark.
func (r *roomRepository) ListPopular(ctx context.Context, n int) ([]models.Room, error) {
	var rooms []models.Room
	err := r.withDetails(ctx).
		Order("rooms.members_max DESC, rooms.id ASC").
		Limit(n).
		Find(&rooms).Error
	return rooms, err
}
