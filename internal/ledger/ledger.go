package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/apperr"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive a wallet balance
	// below zero. No mutation is applied.
	ErrInsufficientFunds = apperr.New(apperr.KindInsufficientFunds, "insufficient funds")

	// ErrDuplicateTransaction indicates the reference is already recorded.
	// References are the idempotency key for ledger mutations.
	ErrDuplicateTransaction = apperr.New(apperr.KindConflict, "duplicate transaction")

	// ErrTransactionNotFound means no transaction is recorded under the reference.
	ErrTransactionNotFound = apperr.New(apperr.KindNotFound, "transaction not found")

	// ErrWalletNotFound means the wallet code is unknown to the ledger.
	ErrWalletNotFound = apperr.New(apperr.KindNotFound, "wallet not found")

	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = apperr.Validation("amount must be positive")

	// ErrAmountPrecision rejects amounts finer than the minor unit. Balances
	// are stored as NUMERIC(20,2) and charged at two decimals.
	ErrAmountPrecision = apperr.Validation("amount has more than two decimal places")
)

// MinorUnitPlaces is the number of fractional digits a posting may carry.
const MinorUnitPlaces = 2

// ValidateAmount reports whether amount can be posted as-is: positive and
// with no more than MinorUnitPlaces decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(MinorUnitPlaces)) {
		return ErrAmountPrecision
	}
	return nil
}

// Kind is the direction of a gateway-backed transaction.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Status is the lifecycle state of a transaction. Settled and Failed are terminal.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusSettled   Status = "settled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusFailed
}

// Outcome is the settlement verdict reported by the payment processor.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureReasonInsufficientFunds marks a withdrawal that lost a race for the balance.
const FailureReasonInsufficientFunds = "insufficient_funds"

// Transaction is a money movement initiated with a gateway and finalized by settlement.
type Transaction struct {
	Reference     string
	Phone         string
	WalletCode    string
	Kind          Kind
	Amount        decimal.Decimal
	Status        Status
	Gateway       string
	FailureReason string
	CreatedAt     time.Time
	SettledAt     *time.Time
}

// SettleResult describes the effect of a Settle call. Transitioned is false
// when the transaction was already terminal and the call was a no-op.
type SettleResult struct {
	Transaction  Transaction
	Transitioned bool
	Balance      decimal.Decimal
}

// Opener provisions a zero-balance wallet.
type Opener interface {
	Open(ctx context.Context, code string) error
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Mutations against one wallet are serialized; a transaction reference causes
// at most one balance change.
type Ledger interface {
	Opener
	Balance(ctx context.Context, code string) (decimal.Decimal, error)
	Credit(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error)
	Record(ctx context.Context, tx Transaction) error
	Transaction(ctx context.Context, reference string) (Transaction, error)
	Settle(ctx context.Context, reference string, outcome Outcome, reason string) (SettleResult, error)
}

// WalletCode derives the ledger code for a wallet identifier.
func WalletCode(walletID string) string {
	return "wallet:" + walletID
}

// delta returns the signed balance change a settled transaction applies.
func (t Transaction) delta() decimal.Decimal {
	if t.Kind == KindWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}
