package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blueroom/internal/models"
	"blueroom/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func seededDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	require.NoError(t, catalog.Apply(db))
	return db
}

func count(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(`
subjects: ["  Math ", "math", "", "Art"]
backgrounds:
  - name: " Cafe "
    image_url: /static/backgrounds/cafe.webp
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Math", "Art"}, c.Subjects)
	require.Len(t, c.Backgrounds, 1)
	assert.Equal(t, "Cafe", c.Backgrounds[0].Name)

	_, err = ParseCatalog([]byte("backgrounds:\n  - image_url: x.webp\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("subjects: [unclosed"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Subjects)
	assert.NotEmpty(t, def.Backgrounds)

	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("subjects: [Latin]\n"), 0o600))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Latin"}, c.Subjects)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestCatalogApplyIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	require.NoError(t, catalog.Apply(db))
	require.NoError(t, catalog.Apply(db))

	assert.Equal(t, int64(len(catalog.Subjects)), count(t, db, &models.Subject{}, ""))
	assert.Equal(t, int64(len(catalog.Backgrounds)), count(t, db, &models.Background{}, ""))
}

func TestSeederRun(t *testing.T) {
	db := seededDB(t)
	res, err := NewSeeder(db).Run(context.Background(), Options{
		Users:           10,
		Rooms:           3,
		MessagesPerRoom: 4,
		Seed:            42,
		BcryptCost:      bcrypt.MinCost,
	})
	require.NoError(t, err)
	assert.Equal(t, &Result{Users: 10, Rooms: 3, Joins: 7, Messages: 12}, res)

	assert.Equal(t, int64(10), count(t, db, &models.User{}, ""))
	assert.Equal(t, int64(10), count(t, db, &models.User{}, "is_busy = ?", true))
	assert.Equal(t, int64(12), count(t, db, &models.Message{}, ""))

	var rooms []models.Room
	require.NoError(t, db.Find(&rooms).Error)
	require.Len(t, rooms, 3)
	total := 0
	for _, room := range rooms {
		open := count(t, db, &models.Participation{}, "room_id = ? AND time_out IS NULL", room.ID)
		assert.True(t, room.IsActive)
		assert.Equal(t, int64(room.Members), open)
		assert.Equal(t, room.Members, room.MembersMax)
		total += room.Members
	}
	assert.Equal(t, 10, total)

	var u models.User
	require.NoError(t, db.First(&u).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(DemoPassword)))
}

func TestSeederRunClosesRooms(t *testing.T) {
	db := seededDB(t)
	res, err := NewSeeder(db).Run(context.Background(), Options{
		Users:           4,
		Rooms:           2,
		MessagesPerRoom: 1,
		ClosedPct:       100,
		BcryptCost:      bcrypt.MinCost,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Closed)

	assert.Zero(t, count(t, db, &models.Room{}, "is_active = ?", true))
	assert.Zero(t, count(t, db, &models.User{}, "is_busy = ?", true))
	assert.Zero(t, count(t, db, &models.Participation{}, "time_out IS NULL"))
}

func TestSeederRunRejectsMoreRoomsThanUsers(t *testing.T) {
	_, err := NewSeeder(seededDB(t)).Run(context.Background(), Options{Users: 1, Rooms: 2})
	assert.Error(t, err)
}

func TestSeederClearAll(t *testing.T) {
	db := seededDB(t)
	admin := testutil.CreateUser(t, db, "admin")
	require.NoError(t, db.Model(admin).Update("is_admin", true).Error)

	s := NewSeeder(db)
	_, err := s.Run(context.Background(), Options{
		Users: 5, Rooms: 2, MessagesPerRoom: 2, BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())
	assert.Zero(t, count(t, db, &models.Room{}, ""))
	assert.Zero(t, count(t, db, &models.Participation{}, ""))
	assert.Zero(t, count(t, db, &models.Message{}, ""))
	assert.Equal(t, int64(1), count(t, db, &models.User{}, ""))
	assert.NotZero(t, count(t, db, &models.Subject{}, ""))
}
