package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/account"
	"github.com/skaet/ussd_bank/internal/funding"
)

// RegisterAdminRoutes wires operator endpoints. r must already carry the
// admin auth middleware.
func RegisterAdminRoutes(r fiber.Router, accounts *account.Handler, funds *funding.Handler) {
	r.Get("/accounts/:phone", accounts.Get)
	r.Post("/accounts/:phone/credit", accounts.Credit)
	r.Post("/accounts/:phone/debit", accounts.Debit)
	r.Get("/transactions/:reference", funds.Transaction)
	r.Post("/transactions/:reference/verify", funds.Verify)
}
