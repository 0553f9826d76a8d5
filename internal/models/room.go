package models

import "time"

// Room is a classroom session owned by one user.
//
// Members is the live occupancy count and MembersMax its high-water mark.
// Once IsActive is false the room accepts no joins and Members is left at 1.
type Room struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Title        string      `gorm:"size:100;not null" json:"title"`
	Description  string      `gorm:"size:500" json:"description"`
	CreatedBy    uint        `gorm:"not null;index" json:"created_by"`
	Owner        *User       `gorm:"foreignKey:CreatedBy" json:"owner,omitempty"`
	IsPrivate    bool        `gorm:"not null;default:false" json:"is_private"`
	IsActive     bool        `gorm:"not null;index" json:"is_active"`
	EnableMic    bool        `gorm:"not null" json:"enable_mic"`
	Members      int         `gorm:"not null;default:0" json:"members"`
	MembersMax   int         `gorm:"not null;default:0" json:"members_max"`
	BackgroundID *uint       `json:"background_id,omitempty"`
	Background   *Background `json:"background,omitempty"`
	Subjects     []Subject   `gorm:"many2many:room_subjects;" json:"subjects"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsOwner reports whether userID created the room.
func (r *Room) IsOwner(userID uint) bool {
	return r != nil && r.CreatedBy == userID
}

// Subject tags a room with a topic.
type Subject struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:50;not null" json:"name"`
}

// Background is a selectable room backdrop.
type Background struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}
