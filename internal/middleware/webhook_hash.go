package middleware

import (
	"crypto/hmac"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const webhookHashHeader = "verif-hash"

// WebhookHash rejects webhook calls whose verif-hash header differs from the
// configured secret hash. An empty secret disables the check.
func WebhookHash(secret string, logger *slog.Logger) fiber.Handler {
	want := []byte(secret)
	return func(c *fiber.Ctx) error {
		if len(want) == 0 {
			return c.Next()
		}
		if !hmac.Equal([]byte(c.Get(webhookHashHeader)), want) {
			logger.Warn("webhook signature mismatch", "ip", c.IP(), "request_id", RequestIDFrom(c))
			return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
		}
		return c.Next()
	}
}
