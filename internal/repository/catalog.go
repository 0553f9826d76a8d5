package repository

import (
	"context"

	"blueroom/internal/models"

	"gorm.io/gorm"
)

// CatalogRepository defines data access for room subjects and backgrounds.
type CatalogRepository interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	FindSubjects(ctx context.Context, ids []uint) ([]models.Subject, error)
	CreateSubject(ctx context.Context, s *models.Subject) error
	ListBackgrounds(ctx context.Context) ([]models.Background, error)
	GetBackground(ctx context.Context, id uint) (*models.Background, error)
	CreateBackground(ctx context.Context, b *models.Background) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var out []models.Subject
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// FindSubjects loads the subjects with the given ids; missing ids are simply absent.
func (r *catalogRepository) FindSubjects(ctx context.Context, ids []uint) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Subject
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *catalogRepository) CreateSubject(ctx context.Context, s *models.Subject) error {
	return translateError(r.db.WithContext(ctx).Create(s).Error, "Subject", s.Name)
}

func (r *catalogRepository) ListBackgrounds(ctx context.Context) ([]models.Background, error) {
	var out []models.Background
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *catalogRepository) GetBackground(ctx context.Context, id uint) (*models.Background, error) {
	var b models.Background
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translateError(err, "Background", id)
	}
	return &b, nil
}

func (r *catalogRepository) CreateBackground(ctx context.Context, b *models.Background) error {
	return r.db.WithContext(ctx).Create(b).Error
}
