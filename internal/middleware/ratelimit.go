package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ApplyRateLimit caps the number of ledger transactions one actor may
// record per minute, using Redis counters when available. It fails open
// without Redis or on cache errors so a cache outage cannot block staff.
func ApplyRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		actor, _ := c.Locals(ActorLocal).(string)
		if actor == "" {
			actor = c.IP()
		}
		key := "rl:apply:" + actor
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many transactions, try again later")
		}
		return c.Next()
	}
}
