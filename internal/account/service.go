package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/notification"
)

var (
	ErrAccountExists   = apperr.New(apperr.KindConflict, "account already exists")
	ErrAccountNotFound = apperr.New(apperr.KindNotFound, "account not found")
	ErrInvalidPIN      = apperr.New(apperr.KindAuth, "invalid PIN")
	ErrMalformedPIN    = apperr.Validation("PIN must be 4 digits and contain only numbers")
)

// Service manages the account lifecycle and the wallet operations keyed by phone.
type Service struct {
	repo     Repository
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
	cost     int
	now      func() time.Time
}

type Option func(*Service)

// WithBcryptCost overrides the PIN hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a new account service.
func NewService(repo Repository, l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		ledger:   l,
		notifier: notifier,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens an account with a zero-balance wallet and stores a hashed PIN.
// The welcome SMS is best effort.
func (s *Service) Create(ctx context.Context, reg Registration) (Account, error) {
	phone := NormalizePhone(reg.Phone)
	if phone == "" {
		return Account{}, apperr.Validation("phone number required")
	}

	if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
		return Account{}, ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if !ValidPIN(reg.PIN) {
		return Account{}, ErrMalformedPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.PIN), s.cost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:         uuid.New().String(),
		Phone:      phone,
		FirstName:  strings.TrimSpace(reg.FirstName),
		LastName:   strings.TrimSpace(reg.LastName),
		PINHash:    hash,
		WalletCode: ledger.WalletCode(uuid.New().String()),
		CreatedAt:  s.now(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	s.logger.Info("account created", logging.Phone(phone), "wallet", account.WalletCode)

	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindWelcome,
		Destination: phone,
		Body:        fmt.Sprintf("Welcome to SKAET Banking, %s! Your account has been created successfully.", account.FirstName),
	})

	return account, nil
}

// Find returns the account registered for phone.
func (s *Service) Find(ctx context.Context, phone string) (Account, error) {
	return s.repo.FindByPhone(ctx, NormalizePhone(phone))
}

// Verify checks pin against the stored hash.
func (s *Service) Verify(ctx context.Context, phone, pin string) (Account, error) {
	account, err := s.Find(ctx, phone)
	if err != nil {
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword(account.PINHash, []byte(pin)); err != nil {
		return Account{}, ErrInvalidPIN
	}
	return account, nil
}

// CheckBalance verifies the PIN and reads the committed wallet balance.
func (s *Service) CheckBalance(ctx context.Context, phone, pin string) (decimal.Decimal, error) {
	account, err := s.Verify(ctx, phone, pin)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, account.WalletCode)
}

// Balance reads the wallet balance without credential checks.
func (s *Service) Balance(ctx context.Context, phone string) (decimal.Decimal, error) {
	account, err := s.Find(ctx, phone)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, account.WalletCode)
}

// Credit adds amount to the account's wallet.
func (s *Service) Credit(ctx context.Context, phone string, amount decimal.Decimal) (decimal.Decimal, error) {
	account, err := s.Find(ctx, phone)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := s.ledger.Credit(ctx, account.WalletCode, amount)
	if err != nil {
		return decimal.Zero, err
	}
	s.logger.Info("account credited", logging.Phone(account.Phone), "amount", amount.String())
	return balance, nil
}

// Debit subtracts amount from the account's wallet. It refuses rather than
// clamps when the balance is short.
func (s *Service) Debit(ctx context.Context, phone string, amount decimal.Decimal) (decimal.Decimal, error) {
	account, err := s.Find(ctx, phone)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := s.ledger.Debit(ctx, account.WalletCode, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.logger.Warn("debit refused", logging.Phone(account.Phone), "amount", amount.String())
		}
		return balance, err
	}
	s.logger.Info("account debited", logging.Phone(account.Phone), "amount", amount.String())
	return balance, nil
}
