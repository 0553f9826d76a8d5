// Package service implements the room lifecycle, chat, reporting and account
// logic on top of the repositories.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"blueroom/internal/middleware"
	"blueroom/internal/models"
	"blueroom/internal/observability"

	"go.opentelemetry.io/otel/trace"
)

// Publisher delivers an encoded event to a hub topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }

// publish encodes frame and hands it to pub. Failures are logged only: the
// state change it announces has already been committed.
func publish(ctx context.Context, pub Publisher, topic string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode event",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), topic, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
	}
}

// finishTransition ends the span of a lifecycle operation and counts its outcome.
func finishTransition(span trace.Span, action string, err error) {
	observability.RoomTransitions.WithLabelValues(action, resultLabel(err)).Inc()
	observability.EndSpan(span, err)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}

// asAppError leaves taxonomy errors alone and wraps anything else as internal.
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
