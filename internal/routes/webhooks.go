package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/funding"
)

// RegisterWebhookRoutes wires processor callbacks behind the given guards.
func RegisterWebhookRoutes(r fiber.Router, h *funding.Handler, guards ...fiber.Handler) {
	group := r.Group("/webhooks", guards...)
	group.Post("/flutterwave", h.Webhook)
}
