package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/skaet/ussd_bank/internal/logging"
)

const (
	phoneField      = "phoneNumber"
	rateLimitPrefix = "rl:ussd:"
	rateLimitWindow = time.Minute
	rateLimitReply  = "END Too many requests. Please try again later."
)

// PhoneRateLimit caps USSD callbacks per caller per minute. The counter lives
// in Redis; any Redis failure lets the request through.
func PhoneRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller := strings.TrimSpace(c.FormValue(phoneField))
		if caller == "" {
			caller = c.IP()
		}
		key := rateLimitPrefix + caller

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable", logging.Phone(caller), "error", err)
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, rateLimitWindow)
		}
		if cnt > int64(maxPerMin) {
			logger.Warn("rate limit exceeded", logging.Phone(caller), "count", cnt)
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.Status(http.StatusTooManyRequests).SendString(rateLimitReply)
		}
		return c.Next()
	}
}
