package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Static simulates a processor that accepts every request. It stands in for
// Flutterwave in development when no secret key is configured.
type Static struct {
	GatewayName string
}

// Name returns the configured name, defaulting to "static".
func (s Static) Name() string {
	if s.GatewayName == "" {
		return "static"
	}
	return s.GatewayName
}

// Available always reports true.
func (Static) Available(context.Context) bool { return true }

// InitiateDeposit approves the request with a synthetic reference.
func (Static) InitiateDeposit(_ context.Context, req DepositRequest) (Initiation, error) {
	if !req.Amount.IsPositive() {
		return Initiation{}, ErrFailed
	}
	return Initiation{Reference: NewReference(), Instructions: "*737*000*" + req.Amount.StringFixed(0) + "#"}, nil
}

// InitiateWithdrawal approves the request with a synthetic reference.
func (Static) InitiateWithdrawal(_ context.Context, req WithdrawalRequest) (Initiation, error) {
	if !req.Amount.IsPositive() {
		return Initiation{}, ErrFailed
	}
	return Initiation{Reference: NewReference(), Instructions: fmt.Sprintf("Transfer to %s/%s", req.BankCode, req.AccountNumber)}, nil
}

// Verify reports every reference as successful.
func (Static) Verify(_ context.Context, reference string) (Verification, error) {
	return Verification{Reference: reference, Status: "successful", Amount: decimal.Zero, Currency: "NGN"}, nil
}
