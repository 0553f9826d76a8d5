package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blueroom/internal/config"
	"blueroom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUserService(t *testing.T, f *fixture) (*UserService, *ImageService) {
	t.Helper()
	images := NewImageService(&config.Config{UploadDir: t.TempDir(), AvatarMaxUploadMB: 1})
	return NewUserService(f.store.Users, images), images
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users, _ := newUserService(t, f)
	alice := f.user(t, "alice")
	f.user(t, "bob")

	updated, err := users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "alice2", Email: " Alice2@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "alice2@example.com", updated.Email)

	_, err = users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "bob"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Email: "not-an-email"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = users.UpdateProfile(ctx, UpdateProfileInput{UserID: 999, Username: "ghost"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users, _ := newUserService(t, f)
	alice := f.user(t, "alice")

	err := users.ChangePassword(ctx, alice.ID, "wrong", "NewPassword456!")
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	err = users.ChangePassword(ctx, alice.ID, "Password123!", "short")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	require.NoError(t, users.ChangePassword(ctx, alice.ID, "Password123!", "NewPassword456!"))
	reloaded := f.reloadUser(t, alice.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(reloaded.Password), []byte("NewPassword456!")))
}

func TestUserService_UpdateAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users, images := newUserService(t, f)
	alice := f.user(t, "alice")

	updated, err := users.UpdateAvatar(ctx, alice.ID, pngBytes(t, 40, 20))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(updated.Avatar, "/uploads/avatars/"))
	assert.True(t, strings.HasSuffix(updated.Avatar, ".webp"))

	path := filepath.Join(images.UploadDir(), strings.TrimPrefix(updated.Avatar, "/uploads/"))
	_, err = os.Stat(path)
	require.NoError(t, err)

	profile, err := users.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Avatar, profile.Avatar)

	_, err = users.UpdateAvatar(ctx, alice.ID, []byte("definitely not an image"))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestUserService_SetAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users, _ := newUserService(t, f)
	alice := f.user(t, "alice")

	updated, err := users.SetAdmin(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)
	assert.True(t, f.reloadUser(t, alice.ID).IsAdmin)

	list, err := users.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
