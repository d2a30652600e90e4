package funding

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/ledger"
)

// Handler exposes the settlement webhook and the admin transaction endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Webhook settles the transaction named by a Flutterwave event. Unknown
// references and storage failures answer non-2xx so the sender retries.
// Replays, in-flight statuses and success reports whose amount or currency
// differ from the record are acknowledged without settling.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var event WebhookEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed webhook payload")
	}
	reference := event.TransactionReference()
	if reference == "" {
		return fiber.NewError(http.StatusBadRequest, "missing transaction reference")
	}

	outcome, final := event.Outcome()
	if !final {
		h.logger.Info("webhook ignored", "event", event.Event, "reference", reference, "status", event.Data.Status)
		return c.Status(http.StatusOK).JSON(WebhookResponse{Status: "ignored", Reference: reference})
	}

	res, err := h.service.SettleReported(c.UserContext(), reference, outcome, "gateway reported "+strings.ToLower(event.Data.Status),
		Reported{Amount: event.Data.Amount, Currency: event.Data.Currency})
	if err != nil {
		if errors.Is(err, ErrReportMismatch) {
			// Acknowledged so the sender stops; an operator reconciles the record.
			return c.Status(http.StatusOK).JSON(WebhookResponse{Status: "mismatch", Reference: reference})
		}
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			h.logger.Warn("webhook for unknown reference", "event", event.Event, "reference", reference)
			return fiber.NewError(http.StatusNotFound, "unknown transaction reference")
		}
		h.logger.Error("webhook settlement failed", "reference", reference, "error", err)
		return fiber.NewError(http.StatusInternalServerError, "settlement failed")
	}

	if !res.Transitioned {
		return c.Status(http.StatusOK).JSON(WebhookResponse{Status: "duplicate", Reference: reference})
	}
	return c.Status(http.StatusOK).JSON(WebhookResponse{Status: "processed", Reference: reference})
}

// Transaction returns a recorded transaction.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	tx, err := h.service.Transaction(c.UserContext(), c.Params("reference"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// Verify asks the gateway for the transaction status and settles it when final.
func (h *Handler) Verify(c *fiber.Ctx) error {
	v, res, err := h.service.Reconcile(c.UserContext(), c.Params("reference"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(ReconcileResponse{
		GatewayStatus: v.Status,
		Transitioned:  res.Transitioned,
		Transaction:   toTransactionResponse(res.Transaction),
	})
}

func httpError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return fiber.NewError(http.StatusNotFound, err.Error())
	case apperr.KindValidation:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case apperr.KindConflict:
		return fiber.NewError(http.StatusConflict, err.Error())
	case apperr.KindGateway:
		return fiber.NewError(http.StatusBadGateway, "gateway unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
