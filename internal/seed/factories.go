// Package seed loads the subject catalog and fills a database with demo
// users, rooms and chat. It is meant for development and tests.
package seed

import (
	"fmt"
	"strings"

	"blueroom/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every generated account.
const DemoPassword = "Password123!"

// Factory builds fake entities. The same seed yields the same data.
type Factory struct {
	db       *gorm.DB
	faker    *gofakeit.Faker
	password string
	seq      int
}

// NewFactory returns a Factory persisting to db. cost is the bcrypt cost of
// the shared demo password.
func NewFactory(db *gorm.DB, seed int64, cost int) (*Factory, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	return &Factory{db: db, faker: gofakeit.New(seed), password: string(hash)}, nil
}

// CreateUser persists a user with a unique username and email.
// Optional overrides may modify the user before it is saved.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	f.seq++
	username := fmt.Sprintf("%s%d", strings.ToLower(f.faker.FirstName()), f.seq)
	if len(username) > 30 {
		username = username[len(username)-30:]
	}

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: f.password,
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return user, nil
}

// RoomTitle returns a plausible study-room title.
func (f *Factory) RoomTitle() string {
	adj := f.faker.Adjective()
	if adj != "" {
		adj = strings.ToUpper(adj[:1]) + adj[1:]
	}
	return fmt.Sprintf("%s %s study group", adj, f.faker.Noun())
}

// ChatLine returns a short chat message.
func (f *Factory) ChatLine() string {
	return f.faker.Sentence(f.faker.Number(3, 12))
}

// Pick returns an index in [0, n).
func (f *Factory) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// Chance reports true with probability pct/100.
func (f *Factory) Chance(pct int) bool {
	return f.faker.Number(1, 100) <= pct
}
