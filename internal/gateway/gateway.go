package gateway

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/apperr"
)

var (
	// ErrFailed is the failure sentinel for an initiation the processor did not accept.
	ErrFailed = apperr.New(apperr.KindGateway, "payment gateway request failed")

	// ErrUnknownGateway means no gateway is registered under the requested name.
	ErrUnknownGateway = apperr.New(apperr.KindValidation, "unsupported payment method")
)

// DepositRequest asks the processor to collect funds from the customer.
type DepositRequest struct {
	Phone  string
	Amount decimal.Decimal
}

// WithdrawalRequest asks the processor to pay out to a bank account.
type WithdrawalRequest struct {
	Phone         string
	Amount        decimal.Decimal
	BankCode      string
	AccountNumber string
}

// Initiation is the processor's acceptance of a request. Reference correlates
// the eventual webhook; Instructions is customer-facing text such as a dial code.
type Initiation struct {
	Reference    string
	Instructions string
}

// Verification is the processor's current view of a transaction.
type Verification struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
}

// Gateway is a connector to an external payment processor.
type Gateway interface {
	Name() string
	Available(ctx context.Context) bool
	InitiateDeposit(ctx context.Context, req DepositRequest) (Initiation, error)
	InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) (Initiation, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}

// NewReference returns a processor reference: "FLW-" and sixteen upper-case
// hex characters taken from a random UUID.
func NewReference() string {
	id := uuid.New()
	return "FLW-" + strings.ToUpper(hex.EncodeToString(id[:8]))
}
