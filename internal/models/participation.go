package models

import "time"

// Participation records one occupancy interval of a user in a room.
// The open participation for a (user, room) pair is the one with a nil TimeOut.
type Participation struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index:idx_participation_user_room" json:"user_id"`
	User      *User      `json:"user,omitempty"`
	RoomID    uint       `gorm:"not null;index:idx_participation_user_room;index" json:"room_id"`
	Room      *Room      `json:"-"`
	TimeIn    time.Time  `gorm:"not null" json:"time_in"`
	TimeOut   *time.Time `gorm:"index" json:"time_out"`
	MicAllow  bool       `gorm:"not null" json:"mic_allow"`
	ChatAllow bool       `gorm:"not null" json:"chat_allow"`
	IsBlocked bool       `gorm:"not null;default:false" json:"is_blocked"`
}

// IsOpen reports whether the participation has not been closed yet.
func (p *Participation) IsOpen() bool {
	return p != nil && p.TimeOut == nil
}

// Member is an open participant of a room as listed to clients.
type Member struct {
	UserProfile
	MicAllow  bool      `json:"mic_allow"`
	ChatAllow bool      `json:"chat_allow"`
	TimeIn    time.Time `json:"time_in"`
}
