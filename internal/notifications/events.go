package notifications

import (
	"encoding/json"
	"time"

	"blueroom/internal/models"
)

// Frame types exchanged over the room and room-list channels.
const (
	FrameMessage         = "message"
	FrameOffer           = "offer"
	FrameAnswer          = "answer"
	FrameCandidate       = "candidate"
	FrameInitialMessages = "initial_messages"
	FrameChatMessage     = "chat_message"
	FrameInitialRooms    = "initial_rooms"
	FrameNewRoom         = "new_room"

	EventRoomUpdated         = "room_updated"
	EventRoomClosed          = "room_closed"
	EventParticipantJoined   = "participant_joined"
	EventParticipantLeft     = "participant_left"
	EventParticipantBlocked  = "participant_blocked"
	EventParticipantsUpdated = "participant_updated"
)

// InitialMessagesFrame carries a room's chat backlog, oldest first.
type InitialMessagesFrame struct {
	Type     string             `json:"type"`
	Messages []models.ChatEntry `json:"messages"`
}

// ChatMessageFrame is a live chat line.
type ChatMessageFrame struct {
	Type        string             `json:"type"`
	ID          uint               `json:"id,omitempty"`
	Message     string             `json:"message"`
	MessageType models.MessageType `json:"message_type"`
	Timestamp   time.Time          `json:"timestamp"`
	User        models.UserProfile `json:"user"`
}

// NewChatMessageFrame wraps a stored chat entry for broadcast.
func NewChatMessageFrame(e models.ChatEntry) ChatMessageFrame {
	return ChatMessageFrame{
		Type:        FrameChatMessage,
		ID:          e.ID,
		Message:     e.Message,
		MessageType: e.Type,
		Timestamp:   e.Timestamp,
		User:        e.User,
	}
}

// SignalFrame relays a WebRTC offer, answer or ICE candidate. Exactly one
// payload field is set, matching Type.
type SignalFrame struct {
	Type      string          `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	UserID    uint            `json:"user_id"`
}

// RoomListFrame is the room-list snapshot sent on connect.
type RoomListFrame struct {
	Type  string        `json:"type"`
	Rooms []models.Room `json:"rooms"`
}

// RoomFrame announces a created, updated or closed room.
type RoomFrame struct {
	Type string `json:"type"`
	Room any    `json:"room"`
}

// ParticipantEvent reports a membership change inside a room.
type ParticipantEvent struct {
	Type      string              `json:"type"`
	RoomID    uint                `json:"room_id"`
	User      *models.UserProfile `json:"user,omitempty"`
	Members   int                 `json:"members"`
	MicAllow  *bool               `json:"mic_allow,omitempty"`
	ChatAllow *bool               `json:"chat_allow,omitempty"`
}

type inboundFrame struct {
	Type        string             `json:"type"`
	Content     string             `json:"content"`
	Message     string             `json:"message"`
	MessageType models.MessageType `json:"message_type"`
	Offer       json.RawMessage    `json:"offer"`
	Answer      json.RawMessage    `json:"answer"`
	Candidate   json.RawMessage    `json:"candidate"`
	Room        json.RawMessage    `json:"room"`
}

// text returns the chat body, accepting either field name.
func (f *inboundFrame) text() string {
	if f.Content != "" {
		return f.Content
	}
	return f.Message
}

// signal returns the relay payload for the frame's own type.
func (f *inboundFrame) signal() json.RawMessage {
	switch f.Type {
	case FrameOffer:
		return f.Offer
	case FrameAnswer:
		return f.Answer
	case FrameCandidate:
		return f.Candidate
	}
	return nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
