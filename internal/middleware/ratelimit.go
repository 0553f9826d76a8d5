package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"blueroom/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Quota bounds how many times one caller may perform an action within a window.
type Quota struct {
	Action string
	Limit  int
	Window time.Duration
}

// Quotas for the routes that create rows or fan out to a whole room.
var (
	SignupQuota     = Quota{Action: "signup", Limit: 3, Window: 10 * time.Minute}
	LoginQuota      = Quota{Action: "login", Limit: 10, Window: 5 * time.Minute}
	AvatarQuota     = Quota{Action: "avatar", Limit: 5, Window: 10 * time.Minute}
	CreateRoomQuota = Quota{Action: "create_room", Limit: 10, Window: 10 * time.Minute}
	SendChatQuota   = Quota{Action: "send_chat", Limit: 30, Window: time.Minute}
	ShareFileQuota  = Quota{Action: "share_file", Limit: 10, Window: time.Minute}
)

var errNoQuotaStore = errors.New("quota store unavailable")

// quotasEnforced is false outside deployed environments.
func quotasEnforced() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return false
	}
	return true
}

func quotaKey(action, caller string) string {
	return fmt.Sprintf("quota:%s:%s", action, caller)
}

// Take spends one unit of q for caller. When the quota is exhausted it
// returns false and the time left until the window resets.
func (q Quota) Take(ctx context.Context, rdb *redis.Client, caller string) (bool, time.Duration, error) {
	if !quotasEnforced() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, errNoQuotaStore
	}

	key := quotaKey(q.Action, caller)
	used, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if used == 1 {
		if err := rdb.Expire(ctx, key, q.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if used <= int64(q.Limit) {
		return true, 0, nil
	}

	left, err := rdb.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if left < 0 {
		// counter lost its TTL; start a fresh window
		rdb.Expire(ctx, key, q.Window)
		left = q.Window
	}
	return false, left, nil
}

// RateLimit enforces q per caller: the authenticated user when there is one,
// the remote IP otherwise. Requests pass when the quota store is unreachable.
func RateLimit(rdb *redis.Client, q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			caller = fmt.Sprintf("user:%d", uid)
		}

		ok, retryIn, err := q.Take(c.UserContext(), rdb, caller)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "quota check skipped",
				slog.String("action", q.Action),
				slog.String("error", err.Error()))
			return c.Next()
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryIn.Seconds()))))
			return models.RespondWithAppError(c, models.NewRateLimitedError(q.Action))
		}
		return c.Next()
	}
}
