// Package repository implements gorm-backed storage for users, rooms,
// participations, messages and the subject/background catalog.
package repository

import (
	"context"
	"errors"
	"strings"

	"blueroom/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// Store bundles the repositories that share one database handle.
type Store struct {
	db  *gorm.DB
	rdb *redis.Client

	Users          UserRepository
	Rooms          RoomRepository
	Participations ParticipationRepository
	Messages       MessageRepository
	Catalog        CatalogRepository
}

// NewStore binds every repository to db. rdb may be nil.
func NewStore(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{
		db:             db,
		rdb:            rdb,
		Users:          NewUserRepository(db, rdb),
		Rooms:          NewRoomRepository(db),
		Participations: NewParticipationRepository(db),
		Messages:       NewMessageRepository(db),
		Catalog:        NewCatalogRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, s.rdb))
	})
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// forUpdate adds a row lock on dialects that support it. sqlite serialises
// writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// translateError maps storage errors onto the application taxonomy.
func translateError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if isUniqueViolation(err) {
		return models.NewConflictError(resource + " already exists")
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
