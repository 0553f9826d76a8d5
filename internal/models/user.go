// Package models contains the persistent domain types and the error taxonomy.
package models

import "time"

// User is an account that can own and join rooms.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Avatar    string    `json:"avatar"`
	IsBusy    bool      `gorm:"not null;default:false" json:"is_busy"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile is the public view of a user embedded in room and chat payloads.
type UserProfile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Profile returns the public profile of u. A nil user yields the zero profile.
func (u *User) Profile() UserProfile {
	if u == nil {
		return UserProfile{}
	}
	return UserProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
