package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/middleware"
)

// Handler exposes operator account endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an account HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type adjustRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type accountResponse struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Wallet    string `json:"wallet"`
	Balance   string `json:"balance"`
}

type balanceResponse struct {
	Phone   string `json:"phone"`
	Balance string `json:"balance"`
}

// Get returns an account and its balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.service.Find(c.UserContext(), c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	balance, err := h.service.Balance(c.UserContext(), acct.Phone)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(accountResponse{
		Phone:     acct.Phone,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Wallet:    acct.WalletCode,
		Balance:   balance.StringFixed(2),
	})
}

// Credit applies a manual credit.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.adjust(c, "credit", h.service.Credit)
}

// Debit applies a manual debit.
func (h *Handler) Debit(c *fiber.Ctx) error {
	return h.adjust(c, "debit", h.service.Debit)
}

type adjustFunc func(ctx context.Context, phone string, amount decimal.Decimal) (decimal.Decimal, error)

// adjust runs a manual balance change and records which operator made it.
func (h *Handler) adjust(c *fiber.Ctx, action string, apply adjustFunc) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return httpError(err)
	}
	phone := NormalizePhone(c.Params("phone"))
	operator := middleware.AdminSubject(c)
	balance, err := apply(c.UserContext(), phone, req.Amount)
	if err != nil {
		h.logger.Warn("manual "+action+" refused",
			"operator", operator,
			logging.Phone(phone),
			"amount", req.Amount.String(),
			"error", err,
		)
		return httpError(err)
	}
	h.logger.Info("manual "+action,
		"operator", operator,
		logging.Phone(phone),
		"amount", req.Amount.String(),
		"balance", balance.StringFixed(2),
	)
	return c.Status(http.StatusOK).JSON(balanceResponse{Phone: phone, Balance: balance.StringFixed(2)})
}

func httpError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return fiber.NewError(http.StatusNotFound, err.Error())
	case apperr.KindValidation:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case apperr.KindInsufficientFunds:
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case apperr.KindConflict:
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
