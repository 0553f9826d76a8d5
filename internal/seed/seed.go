package seed

import (
	"context"
	"fmt"
	"log"

	"blueroom/internal/models"
	"blueroom/internal/repository"
	"blueroom/internal/service"

	"gorm.io/gorm"
)

// Options controls how much demo data Run creates.
type Options struct {
	Users           int
	Rooms           int
	MessagesPerRoom int
	// ClosedPct is the share of rooms whose owner leaves after chatting.
	ClosedPct int
	Seed      int64
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

// Result summarises a seeding run.
type Result struct {
	Users    int
	Rooms    int
	Joins    int
	Messages int
	Closed   int
}

// Seeder creates demo data through the same services the API uses, so the
// generated rooms obey the membership rules.
type Seeder struct {
	db    *gorm.DB
	store *repository.Store
	rooms *service.RoomService
	chat  *service.ChatService
}

// NewSeeder returns a Seeder over db. Events are not published.
func NewSeeder(db *gorm.DB) *Seeder {
	store := repository.NewStore(db, nil)
	return &Seeder{
		db:    db,
		store: store,
		rooms: service.NewRoomService(store, nil),
		chat:  service.NewChatService(store, nil, ""),
	}
}

// ClearAll deletes chat, rooms and every non-admin account. The catalog is kept.
func (s *Seeder) ClearAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&models.Participation{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM room_subjects").Error; err != nil {
			return err
		}
		if err := all.Delete(&models.Room{}).Error; err != nil {
			return err
		}
		if err := all.Model(&models.User{}).Where("is_busy = ?", true).Update("is_busy", false).Error; err != nil {
			return err
		}
		return tx.Where("is_admin = ?", false).Delete(&models.User{}).Error
	})
}

// Run creates opts.Users accounts, lets the first opts.Rooms of them open a
// room and spreads the rest over those rooms before filling them with chat.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Rooms > opts.Users {
		return nil, fmt.Errorf("cannot open %d rooms with %d users", opts.Rooms, opts.Users)
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = 10
	}
	factory, err := NewFactory(s.db, opts.Seed, cost)
	if err != nil {
		return nil, err
	}

	subjects, err := s.store.Catalog.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	backgrounds, err := s.store.Catalog.ListBackgrounds(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	users := make([]*models.User, 0, opts.Users)
	for range opts.Users {
		u, err := factory.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	res.Users = len(users)

	rooms := make([]*models.Room, 0, opts.Rooms)
	for _, owner := range users[:opts.Rooms] {
		in := service.CreateRoomInput{
			Title:       factory.RoomTitle(),
			Description: factory.ChatLine(),
			IsPrivate:   factory.Chance(20),
			EnableMic:   factory.Chance(70),
		}
		if len(subjects) > 0 {
			in.SubjectIDs = []uint{subjects[factory.Pick(len(subjects))].ID}
		}
		if len(backgrounds) > 0 && factory.Chance(50) {
			id := backgrounds[factory.Pick(len(backgrounds))].ID
			in.BackgroundID = &id
		}
		room, err := s.rooms.CreateRoom(ctx, owner.ID, in)
		if err != nil {
			return nil, fmt.Errorf("create room for %s: %w", owner.Username, err)
		}
		rooms = append(rooms, room)
	}
	res.Rooms = len(rooms)
	if len(rooms) == 0 {
		return res, nil
	}

	members := make(map[uint][]uint, len(rooms))
	for _, room := range rooms {
		members[room.ID] = []uint{room.CreatedBy}
	}
	for _, u := range users[opts.Rooms:] {
		room := rooms[factory.Pick(len(rooms))]
		if _, err := s.rooms.Join(ctx, u.ID, room.ID); err != nil {
			return nil, fmt.Errorf("join %s to room %d: %w", u.Username, room.ID, err)
		}
		members[room.ID] = append(members[room.ID], u.ID)
		res.Joins++
	}

	for _, room := range rooms {
		ids := members[room.ID]
		for range opts.MessagesPerRoom {
			sender := ids[factory.Pick(len(ids))]
			if _, err := s.chat.Send(ctx, sender, room.ID, factory.ChatLine(), models.MessageText); err != nil {
				return nil, fmt.Errorf("chat in room %d: %w", room.ID, err)
			}
			res.Messages++
		}

		if opts.ClosedPct > 0 && factory.Chance(opts.ClosedPct) {
			if err := s.rooms.Leave(ctx, room.CreatedBy, room.ID); err != nil {
				return nil, fmt.Errorf("close room %d: %w", room.ID, err)
			}
			res.Closed++
		}
	}

	log.Printf("seeded %d users, %d rooms (%d closed), %d joins, %d messages",
		res.Users, res.Rooms, res.Closed, res.Joins, res.Messages)
	return res, nil
}
