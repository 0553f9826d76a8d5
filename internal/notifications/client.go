package notifications

import (
	"log/slog"
	"sync"
	"time"

	"blueroom/internal/middleware"
	"blueroom/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBufferSize = 256
)

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	// The websocket connection. Nil in tests that only inspect Send.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint

	// IncomingHandler is called for every inbound text frame.
	IncomingHandler func(*Client, []byte)

	// OnActivity is called whenever the peer shows signs of life.
	OnActivity func(*Client)

	// OnClose runs once when the read side ends, before the connection closes.
	OnClose func(*Client)

	hubName string

	// mu guards Send against a close racing a hub delivery.
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a Client whose metrics are labelled with hubName.
func NewClient(hubName string, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, sendBufferSize),
		hubName: hubName,
	}
}

// ReadPump pumps messages from the websocket connection to IncomingHandler.
// It returns when the peer goes away or a read fails.
func (c *Client) ReadPump() {
	defer func() {
		if c.OnClose != nil {
			c.OnClose(c)
		}
		c.Close()
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed",
					slog.String("hub", c.hubName),
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()))
			}
			return
		}

		c.touch()
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from Send to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. It reports false when the
// buffer is full or the client is already closed.
func (c *Client) TrySend(message []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hubName, "closed").Inc()
		return false
	}

	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hubName, "full").Inc()
		middleware.Logger.Warn("websocket send buffer full, dropped message",
			slog.String("hub", c.hubName),
			slog.Uint64("user_id", uint64(c.UserID)))
		return false
	}
}

// Close stops the write side. Safe to call more than once and concurrently
// with TrySend.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *Client) touch() {
	if c.OnActivity != nil {
		c.OnActivity(c)
	}
}
