package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/account"
	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/notification"
)

const (
	defaultWithdrawalBank = "058"
	walletCurrency        = "NGN"
)

// ErrReportMismatch means the processor's success report names an amount or
// currency other than the recorded one. Nothing is settled.
var ErrReportMismatch = apperr.New(apperr.KindConflict, "processor report does not match transaction")

// Accounts is the account lookup the coordinator depends on.
type Accounts interface {
	Find(ctx context.Context, phone string) (account.Account, error)
}

// Service owns the Initiated -> Settled|Failed lifecycle of gateway-backed
// money movement. Initiation never touches balances; settlement applies the
// balance change at most once per reference.
type Service struct {
	ledger   ledger.Ledger
	accounts Accounts
	gateways *gateway.Registry
	notifier notification.Notifier
	logger   *slog.Logger
	bankCode string
	now      func() time.Time
}

type Option func(*Service)

// WithWithdrawalBank sets the bank code used when a withdrawal names none.
func WithWithdrawalBank(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.bankCode = code
		}
	}
}

// NewService prepares the coordinator.
func NewService(l ledger.Ledger, accounts Accounts, gateways *gateway.Registry, notifier notification.Notifier, logger *slog.Logger, opts ...Option) (*Service, error) {
	if l == nil || accounts == nil || gateways == nil {
		return nil, fmt.Errorf("ledger, accounts and gateways are required")
	}
	s := &Service{
		ledger:   l,
		accounts: accounts,
		gateways: gateways,
		notifier: notifier,
		logger:   logger,
		bankCode: defaultWithdrawalBank,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DepositInput starts a deposit through the named gateway.
type DepositInput struct {
	Phone  string
	Amount decimal.Decimal
	Method string
}

// WithdrawalInput starts a payout. BankCode and AccountNumber default to the
// configured bank and the last ten digits of the phone.
type WithdrawalInput struct {
	Phone         string
	Amount        decimal.Decimal
	Method        string
	BankCode      string
	AccountNumber string
}

// Receipt is returned to the caller once a gateway accepted the request.
type Receipt struct {
	Reference    string
	Kind         ledger.Kind
	Amount       decimal.Decimal
	Gateway      string
	Instructions string
}

// InitiateDeposit asks the gateway to collect funds and records the
// transaction as Initiated. A gateway failure creates no record.
func (s *Service) InitiateDeposit(ctx context.Context, input DepositInput) (Receipt, error) {
	if err := ledger.ValidateAmount(input.Amount); err != nil {
		return Receipt{}, err
	}
	acct, err := s.accounts.Find(ctx, input.Phone)
	if err != nil {
		return Receipt{}, err
	}
	gw, err := s.available(ctx, input.Method)
	if err != nil {
		return Receipt{}, err
	}

	init, err := gw.InitiateDeposit(ctx, gateway.DepositRequest{Phone: acct.Phone, Amount: input.Amount})
	if err != nil {
		return Receipt{}, gatewayError(err)
	}

	receipt := Receipt{
		Reference:    init.Reference,
		Kind:         ledger.KindDeposit,
		Amount:       input.Amount,
		Gateway:      gw.Name(),
		Instructions: init.Instructions,
	}
	if err := s.record(ctx, acct, receipt); err != nil {
		return Receipt{}, err
	}

	body := fmt.Sprintf("Your deposit of NGN %s is initiated.\nReference: %s", input.Amount.StringFixed(2), init.Reference)
	if init.Instructions != "" {
		body = fmt.Sprintf("Your deposit of NGN %s is initiated.\nDial %s to complete payment.\nReference: %s",
			input.Amount.StringFixed(2), init.Instructions, init.Reference)
	}
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindDepositInstructions,
		Destination: acct.Phone,
		Body:        body,
	})
	return receipt, nil
}

// InitiateWithdrawal checks the balance (advisory only, nothing is reserved),
// asks the gateway to pay out and records the transaction as Initiated.
func (s *Service) InitiateWithdrawal(ctx context.Context, input WithdrawalInput) (Receipt, error) {
	if err := ledger.ValidateAmount(input.Amount); err != nil {
		return Receipt{}, err
	}
	acct, err := s.accounts.Find(ctx, input.Phone)
	if err != nil {
		return Receipt{}, err
	}
	balance, err := s.ledger.Balance(ctx, acct.WalletCode)
	if err != nil {
		return Receipt{}, err
	}
	if balance.LessThan(input.Amount) {
		return Receipt{}, ledger.ErrInsufficientFunds
	}
	gw, err := s.available(ctx, input.Method)
	if err != nil {
		return Receipt{}, err
	}

	bank := input.BankCode
	if bank == "" {
		bank = s.bankCode
	}
	accountNumber := input.AccountNumber
	if accountNumber == "" {
		accountNumber = payoutAccount(acct.Phone)
	}

	init, err := gw.InitiateWithdrawal(ctx, gateway.WithdrawalRequest{
		Phone:         acct.Phone,
		Amount:        input.Amount,
		BankCode:      bank,
		AccountNumber: accountNumber,
	})
	if err != nil {
		return Receipt{}, gatewayError(err)
	}

	receipt := Receipt{
		Reference:    init.Reference,
		Kind:         ledger.KindWithdrawal,
		Amount:       input.Amount,
		Gateway:      gw.Name(),
		Instructions: init.Instructions,
	}
	if err := s.record(ctx, acct, receipt); err != nil {
		return Receipt{}, err
	}

	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindWithdrawalPending,
		Destination: acct.Phone,
		Body: fmt.Sprintf("Your withdrawal of NGN %s is being processed.\nReference: %s\nYou will receive the funds shortly.",
			input.Amount.StringFixed(2), init.Reference),
	})
	return receipt, nil
}

// available resolves method and refuses a gateway that cannot take requests
// before anything is sent to it.
func (s *Service) available(ctx context.Context, method string) (gateway.Gateway, error) {
	gw, err := s.gateways.Get(method)
	if err != nil {
		return nil, err
	}
	if !gw.Available(ctx) {
		s.logger.Warn("gateway unavailable", "gateway", gw.Name())
		return nil, gatewayError(gateway.ErrFailed)
	}
	return gw, nil
}

func (s *Service) record(ctx context.Context, acct account.Account, receipt Receipt) error {
	err := s.ledger.Record(ctx, ledger.Transaction{
		Reference:  receipt.Reference,
		Phone:      acct.Phone,
		WalletCode: acct.WalletCode,
		Kind:       receipt.Kind,
		Amount:     receipt.Amount,
		Gateway:    receipt.Gateway,
		CreatedAt:  s.now(),
	})
	if err != nil {
		// The gateway accepted a request we could not persist; the webhook
		// for this reference will 404 until an operator reconciles it.
		s.logger.Error("record transaction failed",
			"reference", receipt.Reference,
			"kind", string(receipt.Kind),
			logging.Phone(acct.Phone),
			"error", err,
		)
		return apperr.Wrap(apperr.KindInternal, "record transaction", err)
	}
	s.logger.Info("transaction initiated",
		"reference", receipt.Reference,
		"kind", string(receipt.Kind),
		"amount", receipt.Amount.String(),
		"gateway", receipt.Gateway,
		logging.Phone(acct.Phone),
	)
	return nil
}

// Settle finalizes reference with the processor's outcome. Replays against a
// terminal transaction are successful no-ops with Transitioned=false. A
// withdrawal that would overdraw is marked Failed and acknowledged.
func (s *Service) Settle(ctx context.Context, reference string, outcome ledger.Outcome, reason string) (ledger.SettleResult, error) {
	res, err := s.ledger.Settle(ctx, reference, outcome, reason)
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		s.logger.Warn("settlement rejected, balance too low",
			"reference", reference,
			"amount", res.Transaction.Amount.String(),
			"balance", res.Balance.String(),
		)
	case err != nil:
		return ledger.SettleResult{}, err
	}

	if !res.Transitioned {
		s.logger.Info("settlement replay ignored", "reference", reference, "status", string(res.Transaction.Status))
		return res, nil
	}

	s.logger.Info("transaction settled",
		"reference", reference,
		"kind", string(res.Transaction.Kind),
		"status", string(res.Transaction.Status),
		"reason", res.Transaction.FailureReason,
	)
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindSettlement,
		Destination: res.Transaction.Phone,
		Body:        settlementMessage(res),
	})
	return res, nil
}

// Reported is the money movement a processor claims for a transaction. A
// zero Amount or empty Currency is not compared.
type Reported struct {
	Amount   decimal.Decimal
	Currency string
}

func (r Reported) mismatch(tx ledger.Transaction) bool {
	if !r.Amount.IsZero() && !r.Amount.Equal(tx.Amount) {
		return true
	}
	cur := strings.TrimSpace(r.Currency)
	return cur != "" && !strings.EqualFold(cur, walletCurrency)
}

// SettleReported settles like Settle, except that a success outcome whose
// report disagrees with the recorded transaction is refused with
// ErrReportMismatch and the transaction stays Initiated.
func (s *Service) SettleReported(ctx context.Context, reference string, outcome ledger.Outcome, reason string, reported Reported) (ledger.SettleResult, error) {
	if outcome == ledger.OutcomeSuccess {
		tx, err := s.ledger.Transaction(ctx, reference)
		if err != nil {
			return ledger.SettleResult{}, err
		}
		if !tx.Status.Terminal() && reported.mismatch(tx) {
			s.logger.Error("settlement refused, processor report differs from record",
				"reference", reference,
				"recorded_amount", tx.Amount.String(),
				"reported_amount", reported.Amount.String(),
				"reported_currency", reported.Currency,
			)
			return ledger.SettleResult{Transaction: tx}, ErrReportMismatch
		}
	}
	return s.Settle(ctx, reference, outcome, reason)
}

// Transaction returns the recorded transaction for reference.
func (s *Service) Transaction(ctx context.Context, reference string) (ledger.Transaction, error) {
	return s.ledger.Transaction(ctx, reference)
}

// Reconcile asks the originating gateway for the status of reference and
// settles the transaction when the processor reports a final outcome.
func (s *Service) Reconcile(ctx context.Context, reference string) (gateway.Verification, ledger.SettleResult, error) {
	tx, err := s.ledger.Transaction(ctx, reference)
	if err != nil {
		return gateway.Verification{}, ledger.SettleResult{}, err
	}
	gw, err := s.gateways.Get(tx.Gateway)
	if err != nil {
		return gateway.Verification{}, ledger.SettleResult{}, err
	}
	v, err := gw.Verify(ctx, reference)
	if err != nil {
		return gateway.Verification{}, ledger.SettleResult{}, gatewayError(err)
	}

	outcome, final := OutcomeFor(v.Status)
	if !final {
		return v, ledger.SettleResult{Transaction: tx}, nil
	}
	res, err := s.SettleReported(ctx, reference, outcome, "gateway reported "+strings.ToLower(v.Status),
		Reported{Amount: v.Amount, Currency: v.Currency})
	return v, res, err
}

// OutcomeFor maps a processor status to a settlement outcome. final is false
// for statuses that are still in flight.
func OutcomeFor(status string) (outcome ledger.Outcome, final bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful", "success", "completed":
		return ledger.OutcomeSuccess, true
	case "failed", "cancelled", "canceled", "error", "reversed":
		return ledger.OutcomeFailure, true
	default:
		return "", false
	}
}

func settlementMessage(res ledger.SettleResult) string {
	tx := res.Transaction
	amount := tx.Amount.StringFixed(2)
	if tx.Status == ledger.StatusSettled {
		if tx.Kind == ledger.KindDeposit {
			return fmt.Sprintf("Your deposit of NGN %s was successful.\nReference: %s\nNew balance: NGN %s", amount, tx.Reference, res.Balance.StringFixed(2))
		}
		return fmt.Sprintf("Your withdrawal of NGN %s was successful.\nReference: %s\nNew balance: NGN %s", amount, tx.Reference, res.Balance.StringFixed(2))
	}
	if tx.FailureReason == ledger.FailureReasonInsufficientFunds {
		return fmt.Sprintf("Your withdrawal of NGN %s failed due to insufficient balance.\nReference: %s", amount, tx.Reference)
	}
	return fmt.Sprintf("Your %s of NGN %s could not be completed.\nReference: %s", tx.Kind, amount, tx.Reference)
}

func gatewayError(err error) error {
	if apperr.KindOf(err) == apperr.KindGateway {
		return err
	}
	return apperr.Wrap(apperr.KindGateway, "gateway request", errors.Join(gateway.ErrFailed, err))
}

// payoutAccount derives the destination account number from the last ten digits of phone.
func payoutAccount(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}
