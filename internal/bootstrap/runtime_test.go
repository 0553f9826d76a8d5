package bootstrap

import (
	"testing"

	"blueroom/internal/config"
	"blueroom/internal/models"
	"blueroom/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "AdminPassword123!"

func adminConfig() *config.Config {
	return &config.Config{
		AdminBootstrapUsername: "root",
		AdminBootstrapEmail:    " Root@Example.com ",
		AdminBootstrapPassword: adminPassword,
	}
}

func TestEnsureBootstrapAdmin_Disabled(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, EnsureBootstrapAdmin(&config.Config{}, db))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestEnsureBootstrapAdmin_RequiresAllSettings(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := adminConfig()
	cfg.AdminBootstrapPassword = ""
	assert.Error(t, EnsureBootstrapAdmin(cfg, db))

	cfg = adminConfig()
	cfg.AdminBootstrapPassword = "weak"
	assert.Error(t, EnsureBootstrapAdmin(cfg, db))
}

func TestEnsureBootstrapAdmin_CreatesAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, EnsureBootstrapAdmin(adminConfig(), db))
	require.NoError(t, EnsureBootstrapAdmin(adminConfig(), db))

	var admins []models.User
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
	assert.Equal(t, "root@example.com", admins[0].Email)
	assert.True(t, admins[0].IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admins[0].Password), []byte(adminPassword)))
}

func TestEnsureBootstrapAdmin_PromotesExisting(t *testing.T) {
	db := testutil.NewTestDB(t)
	existing := testutil.CreateUser(t, db, "root")

	require.NoError(t, EnsureBootstrapAdmin(adminConfig(), db))

	got := testutil.Reload[models.User](t, db, existing.ID)
	assert.True(t, got.IsAdmin)
	// the existing password is kept
	assert.Equal(t, existing.Password, got.Password)
}
