// Package bootstrap prepares the database and Redis connections shared by the commands.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"blueroom/internal/cache"
	"blueroom/internal/config"
	"blueroom/internal/database"
	"blueroom/internal/models"
	"blueroom/internal/seed"
	"blueroom/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedCatalog bool
	// CatalogPath overrides the built-in catalog when set.
	CatalogPath string
}

// InitRuntime connects to DB and Redis, ensures the bootstrap admin and
// optionally seeds the subject catalog.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// nil when Redis is unreachable
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureBootstrapAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	if opts.SeedCatalog {
		catalog, err := seed.LoadCatalog(opts.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		if err := catalog.Apply(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	return db, r, nil
}

// EnsureBootstrapAdmin creates the account named by the ADMIN_BOOTSTRAP_*
// settings, or promotes it when it already exists. All three settings must be
// given together; with none of them it does nothing.
func EnsureBootstrapAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}

	username := strings.TrimSpace(cfg.AdminBootstrapUsername)
	email := strings.ToLower(strings.TrimSpace(cfg.AdminBootstrapEmail))
	password := cfg.AdminBootstrapPassword
	if username == "" && email == "" && password == "" {
		return nil
	}
	if username == "" || email == "" || password == "" {
		return errors.New("ADMIN_BOOTSTRAP_USERNAME, ADMIN_BOOTSTRAP_EMAIL and ADMIN_BOOTSTRAP_PASSWORD must be set together")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("ADMIN_BOOTSTRAP_USERNAME: %w", err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("ADMIN_BOOTSTRAP_EMAIL: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_BOOTSTRAP_PASSWORD: %w", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("username = ? OR email = ?", username, email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			admin = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				IsAdmin:  true,
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		case admin.IsAdmin:
			return nil
		default:
			return tx.Model(&admin).Update("is_admin", true).Error
		}
	})
	if err != nil {
		return err
	}

	log.Printf("bootstrap admin ensured (%s)", email)
	return nil
}
