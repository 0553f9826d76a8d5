package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"blueroom/internal/models"
	"blueroom/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomService_CreateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")

	room := f.room(t, owner, "  Algebra  ")
	assert.Equal(t, "Algebra", room.Title)
	assert.True(t, room.IsActive)
	assert.Equal(t, 1, room.Members)
	assert.Equal(t, 1, room.MembersMax)
	require.NotNil(t, room.Owner)
	assert.Equal(t, "alice", room.Owner.Username)

	assert.True(t, f.reloadUser(t, owner.ID).IsBusy)
	open, err := f.store.Participations.GetOpen(ctx, owner.ID, room.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.MicAllow)
	assert.True(t, open.ChatAllow)

	assert.Equal(t, []string{notifications.FrameNewRoom}, f.pub.types(t, notifications.RoomListTopic))

	_, err = f.rooms.CreateRoom(ctx, owner.ID, CreateRoomInput{Title: "Second"})
	assert.True(t, models.IsCode(err, models.CodeAlreadyBusy))
}

func TestRoomService_CreateRoomValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")

	_, err := f.rooms.CreateRoom(ctx, owner.ID, CreateRoomInput{Title: "   "})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = f.rooms.CreateRoom(ctx, owner.ID, CreateRoomInput{Title: "Physics", SubjectIDs: []uint{42}})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	bg := uint(7)
	_, err = f.rooms.CreateRoom(ctx, owner.ID, CreateRoomInput{Title: "Physics", BackgroundID: &bg})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	assert.False(t, f.reloadUser(t, owner.ID).IsBusy)
}

func TestRoomService_CreateRoomWithSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice")

	math := &models.Subject{Name: "Math"}
	bio := &models.Subject{Name: "Biology"}
	require.NoError(t, f.store.Catalog.CreateSubject(ctx, math))
	require.NoError(t, f.store.Catalog.CreateSubject(ctx, bio))

	room, err := f.rooms.CreateRoom(ctx, owner.ID, CreateRoomInput{
		Title:      "Study group",
		SubjectIDs: []uint{bio.ID, math.ID, bio.ID},
	})
	require.NoError(t, err)
	assert.Len(t, room.Subjects, 2)

	updated, err := f.rooms.UpdateRoom(ctx, owner.ID, room.ID, UpdateRoomInput{SubjectIDs: []uint{math.ID}})
	require.NoError(t, err)
	require.Len(t, updated.Subjects, 1)
	assert.Equal(t, "Math", updated.Subjects[0].Name)
}

func TestRoomService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	room := f.room(t, a, "Chemistry")

	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)
	r := f.reloadRoom(t, room.ID)
	assert.Equal(t, 2, r.Members)
	assert.Equal(t, 2, r.MembersMax)
	assert.True(t, f.reloadUser(t, b.ID).IsBusy)

	require.NoError(t, f.rooms.Leave(ctx, b.ID, room.ID))
	r = f.reloadRoom(t, room.ID)
	assert.Equal(t, 1, r.Members)
	assert.Equal(t, 2, r.MembersMax)
	assert.False(t, f.reloadUser(t, b.ID).IsBusy)

	require.NoError(t, f.rooms.Leave(ctx, a.ID, room.ID))
	r = f.reloadRoom(t, room.ID)
	assert.False(t, r.IsActive)
	assert.Equal(t, 1, r.Members)
	assert.False(t, f.reloadUser(t, a.ID).IsBusy)

	_, err = f.rooms.Join(ctx, b.ID, room.ID)
	assert.True(t, models.IsCode(err, models.CodeRoomInactive))

	assert.Equal(t, []string{
		notifications.EventParticipantJoined,
		notifications.EventParticipantLeft,
		notifications.EventRoomClosed,
	}, f.pub.types(t, notifications.RoomTopic(room.ID)))
}

func TestRoomService_OwnerLeaveReleasesEveryone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	room := f.room(t, owner, "Seminar")

	var guests []*models.User
	for i := range 3 {
		u := f.user(t, fmt.Sprintf("guest%d", i))
		_, err := f.rooms.Join(ctx, u.ID, room.ID)
		require.NoError(t, err)
		guests = append(guests, u)
	}
	assert.Equal(t, 4, f.reloadRoom(t, room.ID).MembersMax)

	require.NoError(t, f.rooms.Leave(ctx, owner.ID, room.ID))

	for _, g := range guests {
		assert.False(t, f.reloadUser(t, g.ID).IsBusy, g.Username)
		open, err := f.store.Participations.GetOpen(ctx, g.ID, room.ID)
		require.NoError(t, err)
		assert.Nil(t, open)
	}
	r := f.reloadRoom(t, room.ID)
	assert.False(t, r.IsActive)
	assert.Equal(t, 1, r.Members)
	assert.Equal(t, 4, r.MembersMax)

	err := f.rooms.Leave(ctx, owner.ID, room.ID)
	assert.True(t, models.IsCode(err, models.CodeNotParticipant))
}

func TestRoomService_JoinRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	c := f.user(t, "carol")
	roomA := f.room(t, a, "Room A")
	roomC := f.room(t, c, "Room C")

	_, err := f.rooms.Join(ctx, b.ID, roomA.ID)
	require.NoError(t, err)

	_, err = f.rooms.Join(ctx, b.ID, roomC.ID)
	assert.True(t, models.IsCode(err, models.CodeAlreadyBusy))
	_, err = f.rooms.Join(ctx, b.ID, roomA.ID)
	assert.True(t, models.IsCode(err, models.CodeAlreadyBusy))

	_, err = f.rooms.Join(ctx, b.ID, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = f.rooms.Leave(ctx, c.ID, roomA.ID)
	assert.True(t, models.IsCode(err, models.CodeNotParticipant))

	assert.Equal(t, 2, f.reloadRoom(t, roomA.ID).Members)
	assert.Equal(t, 1, f.reloadRoom(t, roomC.ID).Members)
}

func TestRoomService_Block(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	b := f.user(t, "bob")
	c := f.user(t, "carol")
	room := f.room(t, owner, "Debate")

	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, c.ID, room.ID)
	require.NoError(t, err)

	err = f.rooms.Block(ctx, c.ID, room.ID, b.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	err = f.rooms.Block(ctx, owner.ID, room.ID, owner.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	require.NoError(t, f.rooms.Block(ctx, owner.ID, room.ID, b.ID))
	assert.Equal(t, 2, f.reloadRoom(t, room.ID).Members)
	assert.False(t, f.reloadUser(t, b.ID).IsBusy)
	latest, err := f.store.Participations.GetLatest(ctx, b.ID, room.ID)
	require.NoError(t, err)
	assert.True(t, latest.IsBlocked)
	assert.NotNil(t, latest.TimeOut)

	_, err = f.rooms.Join(ctx, b.ID, room.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	err = f.rooms.Block(ctx, owner.ID, room.ID, b.ID)
	assert.True(t, models.IsCode(err, models.CodeNotParticipant))

	assert.Contains(t, f.pub.types(t, notifications.RoomTopic(room.ID)), notifications.EventParticipantBlocked)
}

func TestRoomService_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	b := f.user(t, "bob")
	room := f.room(t, owner, "Lab")
	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)

	mic, err := f.rooms.ToggleMic(ctx, b.ID, room.ID)
	require.NoError(t, err)
	assert.False(t, mic)
	mic, err = f.rooms.ToggleMic(ctx, b.ID, room.ID)
	require.NoError(t, err)
	assert.True(t, mic)

	no := false
	_, err = f.rooms.SetPermissions(ctx, b.ID, room.ID, b.ID, PermissionsInput{ChatAllow: &no})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	p, err := f.rooms.SetPermissions(ctx, owner.ID, room.ID, b.ID, PermissionsInput{ChatAllow: &no})
	require.NoError(t, err)
	assert.False(t, p.ChatAllow)
	assert.True(t, p.MicAllow)

	members, err := f.rooms.Members(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		if m.ID == b.ID {
			assert.False(t, m.ChatAllow)
			assert.Equal(t, "bob", m.Username)
		}
	}

	p, err = f.rooms.SetPermissions(ctx, owner.ID, room.ID, b.ID, PermissionsInput{Blocked: true})
	require.NoError(t, err)
	assert.True(t, p.IsBlocked)
	assert.Equal(t, 1, f.reloadRoom(t, room.ID).Members)
}

func TestRoomService_UpdateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	room := f.room(t, owner, "Draft")

	title := "Final"
	private := true
	_, err := f.rooms.UpdateRoom(ctx, other.ID, room.ID, UpdateRoomInput{Title: &title})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := f.rooms.UpdateRoom(ctx, owner.ID, room.ID, UpdateRoomInput{Title: &title, IsPrivate: &private})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.True(t, updated.IsPrivate)
	assert.True(t, updated.EnableMic)

	assert.Contains(t, f.pub.types(t, notifications.RoomTopic(room.ID)), notifications.EventRoomUpdated)
}

func TestRoomService_LeaveCurrentRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	b := f.user(t, "bob")
	room := f.room(t, owner, "Hall")

	require.NoError(t, f.rooms.LeaveCurrentRoom(ctx, b.ID))

	_, err := f.rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)
	require.NoError(t, f.rooms.LeaveCurrentRoom(ctx, b.ID))
	assert.False(t, f.reloadUser(t, b.ID).IsBusy)
	assert.Equal(t, 1, f.reloadRoom(t, room.ID).Members)
}

func TestRoomService_ConcurrentJoinLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	room := f.room(t, owner, "Busy room")

	const n = 8
	users := make([]*models.User, n)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("student%d", i))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for range 3 {
				if _, err := f.rooms.Join(ctx, id, room.ID); err != nil {
					t.Errorf("join %d: %v", id, err)
					return
				}
				if err := f.rooms.Leave(ctx, id, room.ID); err != nil {
					t.Errorf("leave %d: %v", id, err)
					return
				}
			}
		}(u.ID)
	}
	wg.Wait()

	r := f.reloadRoom(t, room.ID)
	assert.Equal(t, 1, r.Members)
	assert.GreaterOrEqual(t, r.MembersMax, 2)
	assert.LessOrEqual(t, r.MembersMax, n+1)
	for _, u := range users {
		assert.False(t, f.reloadUser(t, u.ID).IsBusy)
	}
	assert.Equal(t, 0, f.rooms.locks.Len())
}
