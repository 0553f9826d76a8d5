package models

import "time"

// MessageType classifies a chat message.
type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
	MessageLink MessageType = "link"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageLink:
		return true
	}
	return false
}

// Message is an append-only chat line owned by the participation that produced it.
type Message struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ParticipationID uint           `gorm:"not null;index" json:"participation_id"`
	Participation   *Participation `json:"-"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Type            MessageType    `gorm:"size:10;not null;default:'text'" json:"type"`
	Timestamp       time.Time      `gorm:"not null;index" json:"timestamp"`
}

// Sender returns the user that wrote the message when the participation was preloaded.
func (m *Message) Sender() *User {
	if m.Participation == nil {
		return nil
	}
	return m.Participation.User
}

// ChatEntry is a message enriched with its sender's public profile.
type ChatEntry struct {
	ID        uint        `json:"id"`
	Message   string      `json:"message"`
	Type      MessageType `json:"message_type"`
	Timestamp time.Time   `json:"timestamp"`
	User      UserProfile `json:"user"`
}

// Entry converts the message into its client representation.
func (m *Message) Entry() ChatEntry {
	return ChatEntry{
		ID:        m.ID,
		Message:   m.Content,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		User:      m.Sender().Profile(),
	}
}
