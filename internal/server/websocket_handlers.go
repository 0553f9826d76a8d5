package server

import (
	"context"
	"log/slog"
	"time"

	"blueroom/internal/featureflags"
	"blueroom/internal/middleware"
	"blueroom/internal/models"
	"blueroom/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const autoLeaveTimeout = 10 * time.Second

// requireUpgrade rejects plain HTTP requests on websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketRoomHandler serves GET /api/ws/rooms/:id, the chat and signaling
// channel of one room. The room must exist and be active to upgrade; a private
// room also requires an open participation.
func (s *Server) WebSocketRoomHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		roomID, ok2 := conn.Locals("roomID").(uint)
		if !ok || !ok2 {
			_ = conn.Close()
			return
		}

		ctx := middleware.WithRoomID(middleware.WithUserID(context.Background(), uid), roomID)

		client := notifications.NewClient(s.hub.Name(), conn, uid)
		session := notifications.NewRoomSession(s.hub, s.chatService, client, roomID)
		if err := session.Open(ctx); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room unavailable"}`))
			_ = conn.Close()
			return
		}
		s.presence.Register(ctx, uid, roomID)

		client.IncomingHandler = func(_ *notifications.Client, data []byte) {
			session.HandleFrame(ctx, data)
		}
		client.OnActivity = func(*notifications.Client) {
			s.presence.Touch(ctx, uid, roomID)
		}
		client.OnClose = func(*notifications.Client) {
			session.Close(ctx, "client disconnected")
			s.presence.Unregister(ctx, uid, roomID)
		}

		s.runPumps(client)
	})

	return func(c *fiber.Ctx) error {
		roomID, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		room, err := s.roomService.Get(c.UserContext(), roomID)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !room.IsActive {
			return models.RespondWithAppError(c, models.NewRoomInactiveError(roomID))
		}
		if room.IsPrivate {
			uid, _ := c.Locals("userID").(uint)
			open, err := s.store.Participations.GetOpen(c.UserContext(), uid, roomID)
			if err != nil {
				return models.RespondWithAppError(c, err)
			}
			if open == nil {
				return models.RespondWithAppError(c, models.NewForbiddenError("join the room before connecting"))
			}
		}
		c.Locals("roomID", roomID)
		return upgrade(c)
	}
}

// WebSocketRoomListHandler serves GET /api/ws/rooms, the lobby feed of active rooms.
func (s *Server) WebSocketRoomListHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		ctx := middleware.WithUserID(context.Background(), uid)

		client := notifications.NewClient(s.hub.Name(), conn, uid)
		session := notifications.NewRoomListSession(s.hub, s.roomService, client)
		if err := session.Open(ctx); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room list unavailable"}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(_ *notifications.Client, data []byte) {
			session.HandleFrame(ctx, data)
		}
		client.OnClose = func(*notifications.Client) {
			session.Close(ctx, "client disconnected")
		}

		s.runPumps(client)
	})
}

// runPumps blocks until the peer goes away and the write side has drained.
func (s *Server) runPumps(client *notifications.Client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.WritePump()
	}()
	client.ReadPump()
	<-done
}

// handlePresenceExpired turns a socket that stayed away past the grace
// period into a room leave.
func (s *Server) handlePresenceExpired(userID, roomID uint) {
	if !s.featureFlags.Enabled(featureflags.AutoLeaveOnDisconnect, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(
		middleware.WithRoomID(middleware.WithUserID(context.Background(), userID), roomID),
		autoLeaveTimeout)
	defer cancel()

	err := s.roomService.Leave(ctx, userID, roomID)
	switch {
	case err == nil:
		middleware.Logger.InfoContext(ctx, "left room after disconnect")
	case models.IsCode(err, models.CodeNotParticipant), models.IsCode(err, models.CodeNotFound):
		// already left
	default:
		middleware.Logger.WarnContext(ctx, "auto leave failed", slog.String("error", err.Error()))
	}
}
