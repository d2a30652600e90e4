package ussd

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the aggregator callback.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a USSD HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Callback answers a form-encoded aggregator request with a plain-text
// CON/END body. Dialog failures are replies, not HTTP errors.
func (h *Handler) Callback(c *fiber.Ctx) error {
	reply := h.engine.Handle(c.UserContext(), c.FormValue("phoneNumber"), c.FormValue("text"), c.FormValue("sessionId"))
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(http.StatusOK).SendString(reply)
}
