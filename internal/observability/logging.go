package observability

import (
	"context"
	"log/slog"
	"os"
)

var wsLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetWSLogger replaces the logger used by every WSLogger.
func SetWSLogger(l *slog.Logger) {
	if l != nil {
		wsLogger = l
	}
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint, topic string) {
	wsLogger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("topic", topic),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, topic string, reason string) {
	wsLogger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("topic", topic),
		slog.String("reason", reason),
	)
}

// LogError logs a WebSocket error event.
func (l *WSLogger) LogError(ctx context.Context, userID uint, topic string, err error, eventType string) {
	wsLogger.ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("topic", topic),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogDrop logs a frame that was discarded without closing the connection.
func (l *WSLogger) LogDrop(ctx context.Context, userID uint, topic string, reason string) {
	wsLogger.DebugContext(ctx, "websocket frame dropped",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("topic", topic),
		slog.String("reason", reason),
	)
}
