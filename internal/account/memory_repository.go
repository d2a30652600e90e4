package account

import (
	"context"
	"sync"

	"github.com/skaet/ussd_bank/internal/ledger"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	wallets  ledger.Opener
}

// NewMemoryRepository builds an in-memory account store for testing and
// development. Wallets are opened on the supplied ledger while the store lock
// is held, so a losing concurrent Create never provisions a wallet.
func NewMemoryRepository(wallets ledger.Opener) Repository {
	return &memoryRepository{accounts: make(map[string]Account), wallets: wallets}
}

func (r *memoryRepository) Create(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[account.Phone]; exists {
		return ErrAccountExists
	}
	if r.wallets != nil {
		if err := r.wallets.Open(ctx, account.WalletCode); err != nil {
			return err
		}
	}
	r.accounts[account.Phone] = account
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[phone]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}
