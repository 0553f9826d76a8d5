package notifications

import (
	"context"
	"encoding/json"
	"errors"

	"blueroom/internal/models"
	"blueroom/internal/observability"
)

// RoomLister returns the active rooms, newest first.
type RoomLister interface {
	ListActive(ctx context.Context, query string) ([]models.Room, error)
}

// RoomListSession is a lobby connection following room creation.
type RoomListSession struct {
	session
	rooms RoomLister
}

// NewRoomListSession binds client to the room-list topic.
func NewRoomListSession(hub Hub, rooms RoomLister, client *Client) *RoomListSession {
	return &RoomListSession{
		session: session{
			hub:    hub,
			client: client,
			topic:  RoomListTopic,
			log:    observability.NewWSLogger(hub.Name()),
		},
		rooms: rooms,
	}
}

// Open subscribes to room-list updates and sends the active-room snapshot.
func (s *RoomListSession) Open(ctx context.Context) error {
	if s.State() != StateConnecting {
		return errors.New("session already opened")
	}
	s.subscribe(ctx)

	rooms, err := s.rooms.ListActive(ctx, "")
	if err != nil {
		s.log.LogError(ctx, s.client.UserID, s.topic, err, FrameInitialRooms)
		s.Close(ctx, "room list unavailable")
		return err
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	s.send(ctx, RoomListFrame{Type: FrameInitialRooms, Rooms: rooms})
	return nil
}

// HandleFrame relays new_room announcements verbatim to every lobby connection.
func (s *RoomListSession) HandleFrame(ctx context.Context, data []byte) {
	if s.State() != StateSubscribed {
		return
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil || in.Type != FrameNewRoom || !present(in.Room) {
		observability.SessionFrames.WithLabelValues("ignored").Inc()
		s.log.LogDrop(ctx, s.client.UserID, s.topic, "unsupported room-list frame")
		return
	}

	observability.SessionFrames.WithLabelValues(in.Type).Inc()
	s.publish(ctx, RoomFrame{Type: FrameNewRoom, Room: in.Room})
}
