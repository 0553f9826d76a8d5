package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"blueroom/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const topicChannelPrefix = "blueroom:topic:"

// TopicChannel derives the Redis channel name for a hub topic.
func TopicChannel(topic string) string {
	return topicChannelPrefix + topic
}

// Notifier publishes hub topics into Redis channels and subscribes to them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishTopic sends payload to the channel of topic.
func (n *Notifier) PublishTopic(ctx context.Context, topic string, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, TopicChannel(topic), payload).Err()
}

// StartTopicSubscriber pattern-subscribes to every topic channel and calls
// onMessage for each message until ctx is done. It returns once Redis has
// confirmed the subscription.
func (n *Notifier) StartTopicSubscriber(ctx context.Context, onMessage func(topic string, payload []byte)) error {
	if !n.Enabled() {
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, topicChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to topic channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in topic subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(strings.TrimPrefix(msg.Channel, topicChannelPrefix), []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
