package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type walletState struct {
	balance decimal.Decimal
	version int64
}

type inMemoryLedger struct {
	mu           sync.RWMutex
	wallets      map[string]walletState
	transactions map[string]Transaction
	locks        keyedMutex
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local development.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		wallets:      make(map[string]walletState),
		transactions: make(map[string]Transaction),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) Open(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.wallets[code]; !exists {
		l.wallets[code] = walletState{balance: decimal.Zero}
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, exists := l.wallets[code]
	if !exists {
		return decimal.Zero, ErrWalletNotFound
	}
	return w.balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	unlock := l.locks.lock(code)
	defer unlock()
	return l.apply(code, amount)
}

func (l *inMemoryLedger) Debit(_ context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	unlock := l.locks.lock(code)
	defer unlock()
	return l.apply(code, amount.Neg())
}

// apply must be called with the wallet's lock held.
func (l *inMemoryLedger) apply(code string, delta decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, exists := l.wallets[code]
	if !exists {
		return decimal.Zero, ErrWalletNotFound
	}
	next := w.balance.Add(delta)
	if next.IsNegative() {
		return w.balance, ErrInsufficientFunds
	}
	l.wallets[code] = walletState{balance: next, version: w.version + 1}
	return next, nil
}

func (l *inMemoryLedger) Record(_ context.Context, tx Transaction) error {
	if err := ValidateAmount(tx.Amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.transactions[tx.Reference]; exists {
		return ErrDuplicateTransaction
	}
	if _, exists := l.wallets[tx.WalletCode]; !exists {
		return ErrWalletNotFound
	}
	tx.Status = StatusInitiated
	tx.SettledAt = nil
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.now()
	}
	l.transactions[tx.Reference] = tx
	return nil
}

func (l *inMemoryLedger) Transaction(_ context.Context, reference string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, exists := l.transactions[reference]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (l *inMemoryLedger) Settle(ctx context.Context, reference string, outcome Outcome, reason string) (SettleResult, error) {
	unlockRef := l.locks.lock("tx:" + reference)
	defer unlockRef()

	tx, err := l.Transaction(ctx, reference)
	if err != nil {
		return SettleResult{}, err
	}
	if tx.Status.Terminal() {
		return SettleResult{Transaction: tx}, nil
	}

	now := l.now()
	if outcome != OutcomeSuccess {
		l.mu.Lock()
		defer l.mu.Unlock()
		tx = l.finishLocked(tx, StatusFailed, reason, now)
		return SettleResult{Transaction: tx, Transitioned: true}, nil
	}

	unlockWallet := l.locks.lock(tx.WalletCode)
	defer unlockWallet()

	// Balance change and status transition land in one critical section.
	l.mu.Lock()
	defer l.mu.Unlock()
	w, exists := l.wallets[tx.WalletCode]
	if !exists {
		return SettleResult{}, ErrWalletNotFound
	}
	next := w.balance.Add(tx.delta())
	if next.IsNegative() {
		tx = l.finishLocked(tx, StatusFailed, FailureReasonInsufficientFunds, now)
		return SettleResult{Transaction: tx, Transitioned: true, Balance: w.balance}, ErrInsufficientFunds
	}
	l.wallets[tx.WalletCode] = walletState{balance: next, version: w.version + 1}
	tx = l.finishLocked(tx, StatusSettled, "", now)
	return SettleResult{Transaction: tx, Transitioned: true, Balance: next}, nil
}

func (l *inMemoryLedger) finishLocked(tx Transaction, status Status, reason string, at time.Time) Transaction {
	tx.Status = status
	tx.FailureReason = reason
	tx.SettledAt = &at
	l.transactions[tx.Reference] = tx
	return tx
}

// keyedMutex hands out one mutex per key. Entries are never evicted; the key
// space is bounded by wallets and references seen by the process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
