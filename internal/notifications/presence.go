package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blueroom/internal/middleware"
	"blueroom/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceKeyPrefix = "ws:room_presence:"
	defaultPresenceTTL       = 90 * time.Second
	defaultDisconnectGrace   = 30 * time.Second
	expiryClaimTTL           = 5 * time.Second
)

// PresenceConfig controls the disconnect grace window and the Redis mirror.
type PresenceConfig struct {
	KeyPrefix string
	TTL       time.Duration
	Grace     time.Duration
	OnExpire  func(userID, roomID uint)
}

type presenceKey struct {
	userID uint
	roomID uint
}

// Presence counts live room sockets per (user, room). When the last socket of
// a pair drops and nothing reconnects within the grace window, OnExpire fires.
// With Redis, sockets held by other processes keep the pair present.
type Presence struct {
	rdb *redis.Client

	mu          sync.Mutex
	localCounts map[presenceKey]int
	timers      map[presenceKey]*time.Timer
	stopped     bool

	keyPrefix string
	ttl       time.Duration
	grace     time.Duration
	onExpire  func(userID, roomID uint)
}

// NewPresence creates a presence tracker. rdb may be nil.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:         rdb,
		localCounts: make(map[presenceKey]int),
		timers:      make(map[presenceKey]*time.Timer),
		keyPrefix:   defaultPresenceKeyPrefix,
		ttl:         defaultPresenceTTL,
		grace:       defaultDisconnectGrace,
		onExpire:    cfg.OnExpire,
	}
	if cfg.KeyPrefix != "" {
		p.keyPrefix = cfg.KeyPrefix
	}
	if cfg.TTL > 0 {
		p.ttl = cfg.TTL
	}
	if cfg.Grace > 0 {
		p.grace = cfg.Grace
	}
	return p
}

// SetOnExpire replaces the expiry callback.
func (p *Presence) SetOnExpire(fn func(userID, roomID uint)) {
	p.mu.Lock()
	p.onExpire = fn
	p.mu.Unlock()
}

// Register records a new socket for the pair and cancels a pending expiry.
func (p *Presence) Register(ctx context.Context, userID, roomID uint) {
	k := presenceKey{userID: userID, roomID: roomID}

	p.mu.Lock()
	if t, ok := p.timers[k]; ok {
		t.Stop()
		delete(p.timers, k)
	}
	p.localCounts[k]++
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	pipe := p.rdb.TxPipeline()
	pipe.Del(ctx, p.claimKey(k))
	pipe.Incr(ctx, p.redisKey(k))
	pipe.Expire(ctx, p.redisKey(k), p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "presence register failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.Uint64("room_id", uint64(roomID)),
			slog.String("error", err.Error()))
	}
}

// Touch extends the Redis mirror of a live pair.
func (p *Presence) Touch(ctx context.Context, userID, roomID uint) {
	if p.rdb == nil {
		return
	}
	_ = p.rdb.Expire(ctx, p.redisKey(presenceKey{userID: userID, roomID: roomID}), p.ttl).Err()
}

// Unregister drops one socket of the pair. The last one starts the grace timer.
func (p *Presence) Unregister(ctx context.Context, userID, roomID uint) {
	k := presenceKey{userID: userID, roomID: roomID}

	p.mu.Lock()
	n, ok := p.localCounts[k]
	if !ok {
		p.mu.Unlock()
		return
	}
	last := n <= 1
	if last {
		delete(p.localCounts, k)
		if t, ok := p.timers[k]; ok {
			t.Stop()
		}
		if !p.stopped {
			p.timers[k] = time.AfterFunc(p.grace, func() {
				p.finalize(context.Background(), k)
			})
		}
	} else {
		p.localCounts[k] = n - 1
	}
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	remaining, err := p.rdb.Decr(ctx, p.redisKey(k)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "presence unregister failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.Uint64("room_id", uint64(roomID)),
			slog.String("error", err.Error()))
		return
	}
	if remaining <= 0 {
		_ = p.rdb.Del(ctx, p.redisKey(k)).Err()
	}
}

// IsPresent reports whether any process holds a socket for the pair.
func (p *Presence) IsPresent(ctx context.Context, userID, roomID uint) bool {
	k := presenceKey{userID: userID, roomID: roomID}

	p.mu.Lock()
	local := p.localCounts[k] > 0
	p.mu.Unlock()
	if local {
		return true
	}
	return p.remoteCount(ctx, k) > 0
}

// Stop cancels every pending expiry.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for k, t := range p.timers {
		t.Stop()
		delete(p.timers, k)
	}
}

func (p *Presence) finalize(ctx context.Context, k presenceKey) {
	p.mu.Lock()
	delete(p.timers, k)
	if p.stopped || p.localCounts[k] > 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.rdb != nil {
		if p.remoteCount(ctx, k) > 0 {
			p.reschedule(k)
			return
		}
		// every process whose last socket dropped races here; one fires
		claimed, err := p.rdb.SetNX(ctx, p.claimKey(k), 1, expiryClaimTTL).Result()
		if err == nil && !claimed {
			return
		}
	}

	// a socket may have registered while Redis was consulted
	p.mu.Lock()
	if p.stopped || p.localCounts[k] > 0 {
		p.mu.Unlock()
		if p.rdb != nil {
			_ = p.rdb.Del(ctx, p.claimKey(k)).Err()
		}
		return
	}
	cb := p.onExpire
	p.mu.Unlock()

	observability.PresenceExpirations.Inc()
	if cb != nil {
		cb(k.userID, k.roomID)
	}
}

func (p *Presence) reschedule(k presenceKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.localCounts[k] > 0 {
		return
	}
	if _, pending := p.timers[k]; pending {
		return
	}
	p.timers[k] = time.AfterFunc(p.grace, func() {
		p.finalize(context.Background(), k)
	})
}

func (p *Presence) remoteCount(ctx context.Context, k presenceKey) int64 {
	if p.rdb == nil {
		return 0
	}
	n, err := p.rdb.Get(ctx, p.redisKey(k)).Int64()
	if err != nil {
		return 0
	}
	return n
}

func (p *Presence) redisKey(k presenceKey) string {
	return fmt.Sprintf("%s%d:%d", p.keyPrefix, k.roomID, k.userID)
}

func (p *Presence) claimKey(k presenceKey) string {
	return p.redisKey(k) + ":expired"
}
