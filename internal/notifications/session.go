package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"blueroom/internal/models"
	"blueroom/internal/observability"
)

// SessionState is the lifecycle position of a websocket session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateSubscribed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ChatBackend persists chat lines and serves room history. Send is expected
// to publish the resulting chat_message itself.
type ChatBackend interface {
	History(ctx context.Context, roomID uint) ([]models.ChatEntry, error)
	Send(ctx context.Context, userID, roomID uint, content string, typ models.MessageType) (*models.ChatEntry, error)
}

// session holds the topic membership shared by room and room-list sessions.
type session struct {
	hub    Hub
	client *Client
	topic  string
	log    *observability.WSLogger

	state     atomic.Int32
	closeOnce sync.Once
}

func (s *session) subscribe(ctx context.Context) {
	s.hub.Subscribe(s.topic, s.client)
	s.state.Store(int32(StateSubscribed))
	s.log.LogConnect(ctx, s.client.UserID, s.topic)
}

// State reports where the session is in its lifecycle.
func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

// Close unsubscribes from the hub. Only the first call has an effect.
func (s *session) Close(ctx context.Context, reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.hub.Unsubscribe(s.topic, s.client)
		s.log.LogDisconnect(ctx, s.client.UserID, s.topic, reason)
	})
}

func (s *session) send(ctx context.Context, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.log.LogError(ctx, s.client.UserID, s.topic, err, "encode")
		return
	}
	if !s.client.TrySend(payload) {
		s.log.LogDrop(ctx, s.client.UserID, s.topic, "send buffer unavailable")
	}
}

func (s *session) publish(ctx context.Context, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.log.LogError(ctx, s.client.UserID, s.topic, err, "encode")
		return
	}
	if err := s.hub.Publish(ctx, s.topic, payload); err != nil {
		s.log.LogError(ctx, s.client.UserID, s.topic, err, "publish")
	}
}

// RoomSession is the chat and signaling channel of one connection in one room.
type RoomSession struct {
	session
	chat   ChatBackend
	roomID uint
}

// NewRoomSession binds client to the room's topic. Nothing happens until Open.
func NewRoomSession(hub Hub, chat ChatBackend, client *Client, roomID uint) *RoomSession {
	return &RoomSession{
		session: session{
			hub:    hub,
			client: client,
			topic:  RoomTopic(roomID),
			log:    observability.NewWSLogger(hub.Name()),
		},
		chat:   chat,
		roomID: roomID,
	}
}

// Open subscribes to the room and sends the chat backlog. On failure the
// session is closed again.
func (s *RoomSession) Open(ctx context.Context) error {
	if s.State() != StateConnecting {
		return errors.New("session already opened")
	}
	s.subscribe(ctx)

	history, err := s.chat.History(ctx, s.roomID)
	if err != nil {
		s.log.LogError(ctx, s.client.UserID, s.topic, err, FrameInitialMessages)
		s.Close(ctx, "history unavailable")
		return err
	}
	if history == nil {
		history = []models.ChatEntry{}
	}
	s.send(ctx, InitialMessagesFrame{Type: FrameInitialMessages, Messages: history})
	return nil
}

// HandleFrame processes one inbound frame. Malformed or unknown frames are
// dropped and never end the session.
func (s *RoomSession) HandleFrame(ctx context.Context, data []byte) {
	if s.State() != StateSubscribed {
		return
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		observability.SessionFrames.WithLabelValues("malformed").Inc()
		s.log.LogDrop(ctx, s.client.UserID, s.topic, "malformed frame")
		return
	}

	switch in.Type {
	case FrameMessage:
		observability.SessionFrames.WithLabelValues(in.Type).Inc()
		s.handleChat(ctx, &in)
	case FrameOffer, FrameAnswer, FrameCandidate:
		observability.SessionFrames.WithLabelValues(in.Type).Inc()
		s.relaySignal(ctx, &in)
	default:
		observability.SessionFrames.WithLabelValues("ignored").Inc()
		s.log.LogDrop(ctx, s.client.UserID, s.topic, "unknown frame type")
	}
}

func (s *RoomSession) handleChat(ctx context.Context, in *inboundFrame) {
	typ := in.MessageType
	if typ == "" {
		typ = models.MessageText
	}
	if _, err := s.chat.Send(ctx, s.client.UserID, s.roomID, in.text(), typ); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
			s.log.LogDrop(ctx, s.client.UserID, s.topic, appErr.Message)
			return
		}
		s.log.LogError(ctx, s.client.UserID, s.topic, err, FrameMessage)
	}
}

func (s *RoomSession) relaySignal(ctx context.Context, in *inboundFrame) {
	payload := in.signal()
	if !present(payload) {
		s.log.LogDrop(ctx, s.client.UserID, s.topic, "missing "+in.Type+" payload")
		return
	}

	frame := SignalFrame{Type: in.Type, UserID: s.client.UserID}
	switch in.Type {
	case FrameOffer:
		frame.Offer = payload
	case FrameAnswer:
		frame.Answer = payload
	case FrameCandidate:
		frame.Candidate = payload
	}
	s.publish(ctx, frame)
}
