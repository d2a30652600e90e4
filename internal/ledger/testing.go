package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds the balance for a wallet when using the in-memory ledger.
func SeedBalance(l Ledger, code string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[code]
		mem.wallets[code] = walletState{balance: amount, version: w.version + 1}
	}
}
