package service

import (
	"context"
	"testing"
	"time"

	"blueroom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reports := NewReportService(f.store)

	admin := f.user(t, "admin")
	admin.IsAdmin = true
	require.NoError(t, f.store.Users.Update(ctx, admin))

	a := f.user(t, "alice")
	b := f.user(t, "bob")
	c := f.user(t, "carol")
	big := f.room(t, a, "Big")
	_, err := f.rooms.Join(ctx, b.ID, big.ID)
	require.NoError(t, err)
	small, err := f.rooms.CreateRoom(ctx, c.ID, CreateRoomInput{Title: "Small", IsPrivate: true})
	require.NoError(t, err)
	require.NoError(t, f.rooms.Leave(ctx, c.ID, small.ID))

	accounts, err := reports.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), accounts.TotalAccounts)
	assert.Equal(t, int64(2), accounts.BusyAccounts)

	types, err := reports.RoomTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoomTypeReport{TotalRooms: 2, PublicRooms: 1, PrivateRooms: 1}, *types)

	activity, err := reports.RoomActivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoomActivityReport{ActiveRooms: 1, InactiveRooms: 1}, *activity)

	popular, err := reports.PopularRooms(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, popular.Total)
	assert.Equal(t, big.ID, popular.Rooms[0].ID)

	_, err = reports.PopularRooms(ctx, 101)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	today := time.Now().UTC().Format(reportDateLayout)
	created, err := reports.RoomsCreated(ctx, today, today)
	require.NoError(t, err)
	assert.Equal(t, 2, created.TotalCreated)

	old, err := reports.RoomsCreated(ctx, "2000-01-01", "2000-01-31")
	require.NoError(t, err)
	assert.Equal(t, 0, old.TotalCreated)
	assert.NotNil(t, old.Rooms)

	_, err = reports.RoomsCreated(ctx, "2024-02-01", "2024-01-01")
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = reports.RoomsCreated(ctx, "yesterday", today)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
