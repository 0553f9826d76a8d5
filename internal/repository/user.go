package repository

import (
	"context"
	"errors"

	"blueroom/internal/cache"
	"blueroom/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserRepository defines data access for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetForUpdate(ctx context.Context, id uint) (*models.User, error)
	GetProfile(ctx context.Context, id uint) (models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetBusy(ctx context.Context, ids []uint, busy bool) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	CountAccounts(ctx context.Context) (int64, error)
	CountBusy(ctx context.Context) (int64, error)
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository creates a new user repository. rdb enables the profile cache.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := forUpdate(r.db.WithContext(ctx)).First(&user, id).Error; err != nil {
		return nil, translateError(err, "User", id)
	}
	return &user, nil
}

// GetProfile serves the public profile through the Redis cache.
func (r *userRepository) GetProfile(ctx context.Context, id uint) (models.UserProfile, error) {
	var profile models.UserProfile
	err := cache.Aside(ctx, r.rdb, cache.UserKey(id), &profile, cache.UserTTL, func() error {
		user, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		profile = user.Profile()
		return nil
	})
	return profile, err
}

// GetByUsername returns (nil, nil) when no account matches.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// GetByEmail returns (nil, nil) when no account matches.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translateError(r.db.WithContext(ctx).Create(user).Error, "User", user.Username)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("username", "email", "password", "avatar", "is_admin").
		Updates(user).Error
	if err != nil {
		return translateError(err, "User", user.ID)
	}
	_ = cache.Invalidate(ctx, r.rdb, cache.UserKey(user.ID))
	return nil
}

func (r *userRepository) SetBusy(ctx context.Context, ids []uint, busy bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", ids).
		Update("is_busy", busy).Error
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error
	return users, err
}

// CountAccounts counts non-admin accounts.
func (r *userRepository) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_admin = ?", false).Count(&n).Error
	return n, err
}

func (r *userRepository) CountBusy(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_busy = ?", true).Count(&n).Error
	return n, err
}
