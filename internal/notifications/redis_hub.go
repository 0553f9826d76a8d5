package notifications

import (
	"context"
	"log/slog"
	"sync"

	"blueroom/internal/middleware"
	"blueroom/internal/observability"

	"github.com/redis/go-redis/v9"
)

// RedisHub fans publishes out through Redis so every process delivers them to
// its own subscribers. Without Redis, or when a publish fails, it delivers
// locally.
type RedisHub struct {
	local    *LocalHub
	notifier *Notifier

	mu     sync.Mutex
	cancel context.CancelFunc
	wired  bool
}

// NewRedisHub creates a hub backed by rdb. A nil rdb yields a purely local hub.
func NewRedisHub(rdb *redis.Client) *RedisHub {
	return &RedisHub{
		local:    NewLocalHub("redis hub"),
		notifier: NewNotifier(rdb),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *RedisHub) Name() string { return h.local.Name() }

func (h *RedisHub) Subscribe(topic string, s Subscriber) {
	h.local.Subscribe(topic, s)
}

func (h *RedisHub) Unsubscribe(topic string, s Subscriber) {
	h.local.Unsubscribe(topic, s)
}

// Publish sends payload through Redis once wiring is running, and locally otherwise.
func (h *RedisHub) Publish(ctx context.Context, topic string, payload []byte) error {
	observability.HubPublishes.WithLabelValues(h.Name(), topicKind(topic)).Inc()

	if !h.isWired() {
		h.local.deliver(topic, payload)
		return nil
	}

	if err := h.notifier.PublishTopic(ctx, topic, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
		h.local.deliver(topic, payload)
	}
	return nil
}

// StartWiring subscribes to the Redis topic channels and forwards every
// message to local subscribers. It is a no-op without Redis.
func (h *RedisHub) StartWiring(ctx context.Context) error {
	if !h.notifier.Enabled() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wired {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	err := h.notifier.StartTopicSubscriber(subCtx, func(topic string, payload []byte) {
		h.local.deliver(topic, payload)
	})
	if err != nil {
		cancel()
		return err
	}
	h.cancel = cancel
	h.wired = true
	return nil
}

// Shutdown stops the Redis subscription. Later publishes are delivered locally.
func (h *RedisHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.wired = false
	return nil
}

// SubscriberCount reports how many local subscribers topic has.
func (h *RedisHub) SubscriberCount(topic string) int {
	return h.local.SubscriberCount(topic)
}

func (h *RedisHub) isWired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wired
}
