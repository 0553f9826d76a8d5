package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"blueroom/internal/middleware"
	"blueroom/internal/models"
	"blueroom/internal/notifications"
	"blueroom/internal/observability"
	"blueroom/internal/repository"
	"blueroom/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// RoomService drives room creation and every membership transition.
//
// A transition takes its in-process locks (room first, then users in
// ascending id order) before opening the database transaction that reads and
// writes the room, the participation and the users involved.
type RoomService struct {
	store *repository.Store
	locks *KeyedLocker
	pub   Publisher
	now   func() time.Time
}

// CreateRoomInput is the input for creating a room.
type CreateRoomInput struct {
	Title        string
	Description  string
	IsPrivate    bool
	EnableMic    bool
	BackgroundID *uint
	SubjectIDs   []uint
}

// UpdateRoomInput lists the room settings to change. Nil fields are kept;
// a nil SubjectIDs keeps the current subjects.
type UpdateRoomInput struct {
	Title        *string
	Description  *string
	IsPrivate    *bool
	EnableMic    *bool
	BackgroundID *uint
	SubjectIDs   []uint
}

// PermissionsInput is an owner's change to a participant. Blocked takes
// precedence over the flags.
type PermissionsInput struct {
	MicAllow  *bool
	ChatAllow *bool
	Blocked   bool
}

// NewRoomService returns a RoomService publishing through pub. A nil pub
// discards events.
func NewRoomService(store *repository.Store, pub Publisher) *RoomService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &RoomService{
		store: store,
		locks: NewKeyedLocker(),
		pub:   pub,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a room with its owner, background and subjects.
func (s *RoomService) Get(ctx context.Context, roomID uint) (*models.Room, error) {
	room, err := s.store.Rooms.GetByID(ctx, roomID)
	return room, asAppError(err)
}

// ListActive returns active rooms newest first, filtered by title or, failing
// that, by subject name.
func (s *RoomService) ListActive(ctx context.Context, query string) ([]models.Room, error) {
	rooms, err := s.store.Rooms.ListActive(ctx, query)
	return rooms, asAppError(err)
}

// Members lists the open participants of a room.
func (s *RoomService) Members(ctx context.Context, roomID uint) ([]models.Member, error) {
	if _, err := s.store.Rooms.GetByID(ctx, roomID); err != nil {
		return nil, asAppError(err)
	}
	parts, err := s.store.Participations.ListOpenByRoom(ctx, roomID)
	if err != nil {
		return nil, asAppError(err)
	}
	members := make([]models.Member, 0, len(parts))
	for _, p := range parts {
		members = append(members, models.Member{
			UserProfile: p.User.Profile(),
			MicAllow:    p.MicAllow,
			ChatAllow:   p.ChatAllow,
			TimeIn:      p.TimeIn,
		})
	}
	return members, nil
}

// CreateRoom opens a new room with the owner as its first participant.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uint, in CreateRoomInput) (room *models.Room, err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.CreateRoom",
		attribute.Int64("user.id", int64(ownerID)))
	defer func() { finishTransition(span, "create", err) }()

	in.Title = strings.TrimSpace(in.Title)
	if verr := validation.ValidateRoomTitle(in.Title); verr != nil {
		return nil, models.NewValidationError(verr.Error())
	}
	if verr := validation.ValidateRoomDescription(in.Description); verr != nil {
		return nil, models.NewValidationError(verr.Error())
	}
	subjects, err := s.resolveSubjects(ctx, in.SubjectIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkBackground(ctx, in.BackgroundID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(transitionKeys(0, ownerID)...)
	defer unlock()

	created := &models.Room{
		Title:        in.Title,
		Description:  in.Description,
		CreatedBy:    ownerID,
		IsPrivate:    in.IsPrivate,
		IsActive:     true,
		EnableMic:    in.EnableMic,
		Members:      1,
		MembersMax:   1,
		BackgroundID: in.BackgroundID,
		Subjects:     subjects,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		owner, err := tx.Users.GetForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.IsBusy {
			return models.NewAlreadyBusyError()
		}
		if err := tx.Rooms.Create(ctx, created); err != nil {
			return err
		}
		if err := tx.Participations.Create(ctx, &models.Participation{
			UserID:    ownerID,
			RoomID:    created.ID,
			TimeIn:    s.now(),
			MicAllow:  true,
			ChatAllow: true,
		}); err != nil {
			return err
		}
		return tx.Users.SetBusy(ctx, []uint{ownerID}, true)
	})
	if err != nil {
		return nil, asAppError(err)
	}

	room, err = s.store.Rooms.GetByID(ctx, created.ID)
	if err != nil {
		return nil, asAppError(err)
	}
	publish(ctx, s.pub, notifications.RoomListTopic, notifications.RoomFrame{Type: notifications.FrameNewRoom, Room: room})
	return room, nil
}

// UpdateRoom edits the settings of a room. Only the owner may do so.
func (s *RoomService) UpdateRoom(ctx context.Context, ownerID, roomID uint, in UpdateRoomInput) (room *models.Room, err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.UpdateRoom",
		attribute.Int64("user.id", int64(ownerID)),
		attribute.Int64("room.id", int64(roomID)))
	defer func() { finishTransition(span, "update", err) }()

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if verr := validation.ValidateRoomTitle(title); verr != nil {
			return nil, models.NewValidationError(verr.Error())
		}
		in.Title = &title
	}
	if in.Description != nil {
		if verr := validation.ValidateRoomDescription(*in.Description); verr != nil {
			return nil, models.NewValidationError(verr.Error())
		}
	}
	var subjects []models.Subject
	if in.SubjectIDs != nil {
		if subjects, err = s.resolveSubjects(ctx, in.SubjectIDs); err != nil {
			return nil, err
		}
	}
	if err := s.checkBackground(ctx, in.BackgroundID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !current.IsOwner(ownerID) {
			return models.NewForbiddenError("Only the room owner can edit the room")
		}
		if in.Title != nil {
			current.Title = *in.Title
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.IsPrivate != nil {
			current.IsPrivate = *in.IsPrivate
		}
		if in.EnableMic != nil {
			current.EnableMic = *in.EnableMic
		}
		if in.BackgroundID != nil {
			current.BackgroundID = in.BackgroundID
		}
		if err := tx.Rooms.Save(ctx, current); err != nil {
			return err
		}
		if in.SubjectIDs != nil {
			return tx.Rooms.ReplaceSubjects(ctx, current, subjects)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}

	room, err = s.store.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, asAppError(err)
	}
	frame := notifications.RoomFrame{Type: notifications.EventRoomUpdated, Room: room}
	publish(ctx, s.pub, notifications.RoomTopic(roomID), frame)
	publish(ctx, s.pub, notifications.RoomListTopic, frame)
	return room, nil
}

// Join opens a participation for the user in the room.
func (s *RoomService) Join(ctx context.Context, userID, roomID uint) (p *models.Participation, err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.Join",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("room.id", int64(roomID)))
	defer func() { finishTransition(span, "join", err) }()

	unlock := s.locks.Lock(transitionKeys(roomID, userID)...)
	defer unlock()

	var members int
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		user, err := tx.Users.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.IsBusy {
			return models.NewAlreadyBusyError()
		}
		if !room.IsActive {
			return models.NewRoomInactiveError(roomID)
		}
		latest, err := tx.Participations.GetLatest(ctx, userID, roomID)
		if err != nil {
			return err
		}
		if latest != nil && latest.IsBlocked {
			return models.NewForbiddenError("You have been blocked from this room")
		}

		p = &models.Participation{
			UserID:    userID,
			RoomID:    roomID,
			TimeIn:    s.now(),
			MicAllow:  true,
			ChatAllow: true,
		}
		if err := tx.Participations.Create(ctx, p); err != nil {
			return err
		}
		room.Members++
		room.MembersMax = max(room.MembersMax, room.Members)
		if err := tx.Rooms.Save(ctx, room); err != nil {
			return err
		}
		members = room.Members
		return tx.Users.SetBusy(ctx, []uint{userID}, true)
	})
	if err != nil {
		return nil, asAppError(err)
	}

	s.publishParticipant(ctx, notifications.EventParticipantJoined, roomID, userID, members, p)
	return p, nil
}

// Leave closes the user's participation. When the owner leaves, the room is
// closed and every participant is sent out with it.
func (s *RoomService) Leave(ctx context.Context, userID, roomID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.Leave",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("room.id", int64(roomID)))
	defer func() { finishTransition(span, "leave", err) }()

	room, err := s.store.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return asAppError(err)
	}
	if room.IsOwner(userID) {
		return s.closeRoom(ctx, userID, roomID)
	}

	unlock := s.locks.Lock(transitionKeys(roomID, userID)...)
	defer unlock()

	var members int
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		open, err := tx.Participations.GetOpen(ctx, userID, roomID)
		if err != nil {
			return err
		}
		if open == nil {
			return models.NewNotParticipantError(roomID)
		}
		if err := s.closeParticipation(ctx, tx, room, open, false); err != nil {
			return err
		}
		members = room.Members
		return tx.Rooms.Save(ctx, room)
	})
	if err != nil {
		return asAppError(err)
	}

	s.publishParticipant(ctx, notifications.EventParticipantLeft, roomID, userID, members, nil)
	return nil
}

// LeaveCurrentRoom leaves whatever room the user is in. It is a no-op for a
// user with no open participation.
func (s *RoomService) LeaveCurrentRoom(ctx context.Context, userID uint) error {
	open, err := s.store.Participations.GetOpenByUser(ctx, userID)
	if err != nil {
		return asAppError(err)
	}
	if open == nil {
		return nil
	}
	return s.Leave(ctx, userID, open.RoomID)
}

// closeRoom runs the owner's departure: the room is deactivated, its members
// counter reset to 1 and every open participation closed.
func (s *RoomService) closeRoom(ctx context.Context, ownerID, roomID uint) error {
	unlockRoom := s.locks.Lock(roomLockKey(roomID))
	defer unlockRoom()

	// joins need the room lock, so this set is stable until we release it
	open, err := s.store.Participations.ListOpenByRoom(ctx, roomID)
	if err != nil {
		return asAppError(err)
	}
	userIDs := make([]uint, 0, len(open))
	for _, p := range open {
		userIDs = append(userIDs, p.UserID)
	}
	unlockUsers := s.locks.Lock(transitionKeys(0, userIDs...)...)
	defer unlockUsers()

	var released []uint
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		parts, err := tx.Participations.ListOpenByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(parts, func(p models.Participation) bool { return p.UserID == ownerID }) {
			return models.NewNotParticipantError(roomID)
		}
		for i := range parts {
			if err := s.closeParticipation(ctx, tx, room, &parts[i], false); err != nil {
				return err
			}
			released = append(released, parts[i].UserID)
		}
		room.IsActive = false
		room.Members = 1
		return tx.Rooms.Save(ctx, room)
	})
	if err != nil {
		return asAppError(err)
	}

	middleware.Logger.InfoContext(ctx, "room closed by owner",
		slog.Uint64("room_id", uint64(roomID)),
		slog.Int("released", len(released)))

	room, err := s.store.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return asAppError(err)
	}
	frame := notifications.RoomFrame{Type: notifications.EventRoomClosed, Room: room}
	publish(ctx, s.pub, notifications.RoomTopic(roomID), frame)
	publish(ctx, s.pub, notifications.RoomListTopic, frame)
	return nil
}

// Block closes the target's participation and marks it blocked, which keeps
// the target out of the room until a later participation clears the marker.
func (s *RoomService) Block(ctx context.Context, ownerID, roomID, targetID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.Block",
		attribute.Int64("user.id", int64(ownerID)),
		attribute.Int64("room.id", int64(roomID)),
		attribute.Int64("target.id", int64(targetID)))
	defer func() { finishTransition(span, "block", err) }()

	unlock := s.locks.Lock(transitionKeys(roomID, targetID)...)
	defer unlock()

	var members int
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(ownerID) {
			return models.NewForbiddenError("Only the room owner can block participants")
		}
		if targetID == ownerID {
			return models.NewValidationError("The room owner cannot block themselves")
		}
		open, err := tx.Participations.GetOpen(ctx, targetID, roomID)
		if err != nil {
			return err
		}
		if open == nil {
			return models.NewNotParticipantError(roomID)
		}
		if err := s.closeParticipation(ctx, tx, room, open, true); err != nil {
			return err
		}
		members = room.Members
		return tx.Rooms.Save(ctx, room)
	})
	if err != nil {
		return asAppError(err)
	}

	s.publishParticipant(ctx, notifications.EventParticipantBlocked, roomID, targetID, members, nil)
	return nil
}

// ToggleMic flips the caller's own microphone permission and returns the new value.
func (s *RoomService) ToggleMic(ctx context.Context, userID, roomID uint) (micAllow bool, err error) {
	ctx, span := observability.StartSpan(ctx, "RoomService.ToggleMic",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("room.id", int64(roomID)))
	defer func() { finishTransition(span, "toggle_mic", err) }()

	unlock := s.locks.Lock(transitionKeys(roomID, userID)...)
	defer unlock()

	var updated *models.Participation
	var members int
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		open, err := tx.Participations.GetOpen(ctx, userID, roomID)
		if err != nil {
			return err
		}
		if open == nil {
			return models.NewNotParticipantError(roomID)
		}
		open.MicAllow = !open.MicAllow
		updated, members = open, room.Members
		return tx.Participations.UpdateFlags(ctx, open.ID, open.MicAllow, open.ChatAllow)
	})
	if err != nil {
		return false, asAppError(err)
	}

	s.publishParticipant(ctx, notifications.EventParticipantsUpdated, roomID, userID, members, updated)
	return updated.MicAllow, nil
}

// SetPermissions lets the owner change a participant's mic and chat flags or
// block them.
func (s *RoomService) SetPermissions(ctx context.Context, ownerID, roomID, targetID uint, in PermissionsInput) (p *models.Participation, err error) {
	if in.Blocked {
		if err := s.Block(ctx, ownerID, roomID, targetID); err != nil {
			return nil, err
		}
		latest, err := s.store.Participations.GetLatest(ctx, targetID, roomID)
		return latest, asAppError(err)
	}

	ctx, span := observability.StartSpan(ctx, "RoomService.SetPermissions",
		attribute.Int64("user.id", int64(ownerID)),
		attribute.Int64("room.id", int64(roomID)),
		attribute.Int64("target.id", int64(targetID)))
	defer func() { finishTransition(span, "set_permissions", err) }()

	unlock := s.locks.Lock(transitionKeys(roomID, targetID)...)
	defer unlock()

	var members int
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(ownerID) {
			return models.NewForbiddenError("Only the room owner can change permissions")
		}
		open, err := tx.Participations.GetOpen(ctx, targetID, roomID)
		if err != nil {
			return err
		}
		if open == nil {
			return models.NewNotParticipantError(roomID)
		}
		if in.MicAllow != nil {
			open.MicAllow = *in.MicAllow
		}
		if in.ChatAllow != nil {
			open.ChatAllow = *in.ChatAllow
		}
		p, members = open, room.Members
		return tx.Participations.UpdateFlags(ctx, open.ID, open.MicAllow, open.ChatAllow)
	})
	if err != nil {
		return nil, asAppError(err)
	}

	s.publishParticipant(ctx, notifications.EventParticipantsUpdated, roomID, targetID, members, p)
	return p, nil
}

// closeParticipation is the single way a participation ends: time_out is
// stamped, the user is released and the room counter drops, never below zero.
// The caller saves the room.
func (s *RoomService) closeParticipation(ctx context.Context, tx *repository.Store, room *models.Room, p *models.Participation, blocked bool) error {
	at := s.now()
	if err := tx.Participations.Close(ctx, p.ID, at, blocked); err != nil {
		return err
	}
	if err := tx.Users.SetBusy(ctx, []uint{p.UserID}, false); err != nil {
		return err
	}
	p.TimeOut = &at
	if blocked {
		p.IsBlocked = true
	}
	if room.Members > 0 {
		room.Members--
	}
	return nil
}

func (s *RoomService) resolveSubjects(ctx context.Context, ids []uint) ([]models.Subject, error) {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	if len(unique) == 0 {
		return nil, nil
	}

	subjects, err := s.store.Catalog.FindSubjects(ctx, unique)
	if err != nil {
		return nil, asAppError(err)
	}
	if len(subjects) != len(unique) {
		for _, id := range unique {
			if !slices.ContainsFunc(subjects, func(sub models.Subject) bool { return sub.ID == id }) {
				return nil, models.NewNotFoundError("Subject", id)
			}
		}
	}
	return subjects, nil
}

func (s *RoomService) checkBackground(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	_, err := s.store.Catalog.GetBackground(ctx, *id)
	return asAppError(err)
}

func (s *RoomService) publishParticipant(ctx context.Context, typ string, roomID, userID uint, members int, p *models.Participation) {
	profile, err := s.store.Users.GetProfile(ctx, userID)
	if err != nil {
		profile = models.UserProfile{ID: userID}
	}
	ev := notifications.ParticipantEvent{
		Type:    typ,
		RoomID:  roomID,
		User:    &profile,
		Members: members,
	}
	if p != nil {
		mic, chat := p.MicAllow, p.ChatAllow
		ev.MicAllow, ev.ChatAllow = &mic, &chat
	}
	publish(ctx, s.pub, notifications.RoomTopic(roomID), ev)
}
