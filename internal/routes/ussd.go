package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/ussd"
)

// RegisterUSSDRoutes wires the aggregator callback.
func RegisterUSSDRoutes(r fiber.Router, h *ussd.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/ussd", rateLimiter, h.Callback)
		return
	}
	r.Post("/ussd", h.Callback)
}
