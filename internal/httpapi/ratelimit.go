package httpapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window counter in redis, shared across
// replicas. It fails open: a redis error lets the request through.
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
	log    *zap.SugaredLogger
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window, log: log}
}

// ByUser limits per authenticated user; it must run after JWTAuth.
func (r *RateLimiter) ByUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(localUserID).(string)
		if userID == "" {
			return c.Next()
		}
		key := fmt.Sprintf("%s:%s", r.prefix, userID)
		ctx := c.UserContext()
		count, err := r.rdb.Incr(ctx, key).Result()
		if err != nil {
			r.log.Warnw("rate limiter unavailable", "err", err)
			return c.Next()
		}
		if count == 1 {
			r.rdb.Expire(ctx, key, r.window)
		}
		if count > r.limit {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
