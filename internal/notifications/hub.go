// Package notifications fans out room events to websocket connections,
// locally or across processes through Redis.
package notifications

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"blueroom/internal/observability"
)

const (
	// RoomListTopic carries room-list updates to every lobby connection.
	RoomListTopic = "rooms"

	roomTopicPrefix = "room:"
)

// RoomTopic is the broadcast topic of a single room.
func RoomTopic(roomID uint) string {
	return roomTopicPrefix + strconv.FormatUint(uint64(roomID), 10)
}

func topicKind(topic string) string {
	if topic == RoomListTopic {
		return "rooms"
	}
	if strings.HasPrefix(topic, roomTopicPrefix) {
		return "room"
	}
	return "other"
}

// Subscriber receives published payloads. TrySend must not block.
type Subscriber interface {
	TrySend(payload []byte) bool
}

// Hub is the broadcast capability the session handlers and services depend on.
type Hub interface {
	Name() string
	Subscribe(topic string, s Subscriber)
	Unsubscribe(topic string, s Subscriber)
	Publish(ctx context.Context, topic string, payload []byte) error
}

// LocalHub keeps topic membership in process memory.
type LocalHub struct {
	name string

	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

// NewLocalHub creates an empty hub. name labels its metrics and logs.
func NewLocalHub(name string) *LocalHub {
	if name == "" {
		name = "local hub"
	}
	return &LocalHub{
		name:   name,
		topics: make(map[string]map[Subscriber]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *LocalHub) Name() string { return h.name }

// Subscribe adds s to topic. Subscribing twice is a no-op.
func (h *LocalHub) Subscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[topic]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.topics[topic] = members
	}
	if _, exists := members[s]; exists {
		return
	}
	members[s] = struct{}{}
	observability.HubSubscribers.WithLabelValues(h.name).Inc()
}

// Unsubscribe removes s from topic and prunes the topic once it is empty.
func (h *LocalHub) Unsubscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, exists := members[s]; !exists {
		return
	}
	delete(members, s)
	observability.HubSubscribers.WithLabelValues(h.name).Dec()
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// Publish delivers payload to every subscriber of topic at the time of the call.
func (h *LocalHub) Publish(_ context.Context, topic string, payload []byte) error {
	observability.HubPublishes.WithLabelValues(h.name, topicKind(topic)).Inc()
	h.deliver(topic, payload)
	return nil
}

// deliver sends outside the lock so a slow subscriber cannot stall membership changes.
func (h *LocalHub) deliver(topic string, payload []byte) int {
	h.mu.RLock()
	members := h.topics[topic]
	snapshot := make([]Subscriber, 0, len(members))
	for s := range members {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		s.TrySend(payload)
	}
	return len(snapshot)
}

// SubscriberCount reports how many subscribers topic has.
func (h *LocalHub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TopicCount reports how many topics currently have subscribers.
func (h *LocalHub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
