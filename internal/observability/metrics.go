package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HubSubscribers is the number of live subscriptions per hub.
	HubSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blueroom_hub_subscribers",
		Help: "Number of live topic subscriptions per hub",
	}, []string{"hub"})

	// HubPublishes counts publish calls by hub and topic kind ("room" or "rooms").
	HubPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blueroom_hub_publishes_total",
		Help: "Total number of events published per hub and topic kind",
	}, []string{"hub", "topic_kind"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blueroom_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// SessionFrames counts inbound websocket frames by type; unknown kinds are labelled "ignored".
	SessionFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blueroom_session_frames_total",
		Help: "Total inbound session frames by type",
	}, []string{"type"})

	// RoomTransitions counts lifecycle transitions by action and outcome code.
	RoomTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blueroom_room_transitions_total",
		Help: "Total room lifecycle transitions by action and result",
	}, []string{"action", "result"})

	// PresenceExpirations counts disconnect grace periods that ran out.
	PresenceExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blueroom_presence_expirations_total",
		Help: "Total number of room presences that expired after a disconnect",
	})
)
