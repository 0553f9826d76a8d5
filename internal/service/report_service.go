package service

import (
	"context"
	"time"

	"blueroom/internal/models"
	"blueroom/internal/repository"
)

const (
	DefaultPopularRooms = 10
	MaxPopularRooms     = 100
	reportDateLayout    = "2006-01-02"
)

// ReportService aggregates the admin reports.
type ReportService struct {
	store *repository.Store
}

func NewReportService(store *repository.Store) *ReportService {
	return &ReportService{store: store}
}

type AccountReport struct {
	TotalAccounts int64 `json:"total_accounts"`
	BusyAccounts  int64 `json:"busy_accounts"`
}

type RoomTypeReport struct {
	TotalRooms   int64 `json:"total_rooms"`
	PublicRooms  int64 `json:"public_rooms"`
	PrivateRooms int64 `json:"private_rooms"`
}

type RoomActivityReport struct {
	ActiveRooms   int64 `json:"active_rooms"`
	InactiveRooms int64 `json:"inactive_rooms"`
}

type RoomsCreatedReport struct {
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	TotalCreated int           `json:"total_rooms_created"`
	Rooms        []models.Room `json:"rooms"`
}

type PopularRoomsReport struct {
	Total int           `json:"total_rooms"`
	Rooms []models.Room `json:"rooms"`
}

func (s *ReportService) Accounts(ctx context.Context) (*AccountReport, error) {
	total, err := s.store.Users.CountAccounts(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	busy, err := s.store.Users.CountBusy(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	return &AccountReport{TotalAccounts: total, BusyAccounts: busy}, nil
}

func (s *ReportService) RoomTypes(ctx context.Context) (*RoomTypeReport, error) {
	total, err := s.store.Rooms.CountAll(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	private, err := s.store.Rooms.CountPrivate(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	return &RoomTypeReport{TotalRooms: total, PublicRooms: total - private, PrivateRooms: private}, nil
}

func (s *ReportService) RoomActivity(ctx context.Context) (*RoomActivityReport, error) {
	total, err := s.store.Rooms.CountAll(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	active, err := s.store.Rooms.CountActive(ctx)
	if err != nil {
		return nil, asAppError(err)
	}
	return &RoomActivityReport{ActiveRooms: active, InactiveRooms: total - active}, nil
}

// RoomsCreated lists rooms created on any day from startDate to endDate,
// both inclusive, given as YYYY-MM-DD in UTC.
func (s *ReportService) RoomsCreated(ctx context.Context, startDate, endDate string) (*RoomsCreatedReport, error) {
	start, err := time.Parse(reportDateLayout, startDate)
	if err != nil {
		return nil, models.NewValidationError("Invalid start_date, use YYYY-MM-DD")
	}
	end, err := time.Parse(reportDateLayout, endDate)
	if err != nil {
		return nil, models.NewValidationError("Invalid end_date, use YYYY-MM-DD")
	}
	if start.After(end) {
		return nil, models.NewValidationError("start_date must not be after end_date")
	}

	rooms, err := s.store.Rooms.ListCreatedBetween(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, asAppError(err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return &RoomsCreatedReport{
		StartDate:    startDate,
		EndDate:      endDate,
		TotalCreated: len(rooms),
		Rooms:        rooms,
	}, nil
}

// PopularRooms returns the n rooms with the highest member high-water mark.
// n defaults to DefaultPopularRooms and must be within 1..MaxPopularRooms.
func (s *ReportService) PopularRooms(ctx context.Context, n int) (*PopularRoomsReport, error) {
	if n == 0 {
		n = DefaultPopularRooms
	}
	if n < 1 || n > MaxPopularRooms {
		return nil, models.NewValidationError("n must be between 1 and 100")
	}
	rooms, err := s.store.Rooms.ListPopular(ctx, n)
	if err != nil {
		return nil, asAppError(err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return &PopularRoomsReport{Total: len(rooms), Rooms: rooms}, nil
}
