package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	// maxCASAttempts bounds the optimistic retry loop for standalone credit/debit.
	maxCASAttempts = 5
)

// ErrConcurrentUpdate is returned when a wallet kept changing under an
// optimistic update for maxCASAttempts rounds.
var ErrConcurrentUpdate = errors.New("wallet updated concurrently, retries exhausted")

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger persists wallet balances and transaction records in PostgreSQL.
type PostgresLedger struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// OpenWallet inserts a zero-balance wallet row through q. Callers running
// inside a transaction pass the pgx.Tx so the wallet commits with its account.
func OpenWallet(ctx context.Context, q Querier, code string) error {
	_, err := q.Exec(ctx, `INSERT INTO wallets (id, code, balance, version) VALUES ($1, $2, 0, 0)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Open guarantees a wallet exists for the provided code.
func (l *PostgresLedger) Open(ctx context.Context, code string) error {
	return OpenWallet(ctx, l.db, code)
}

// Balance reads the committed balance. No caching.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	balance, _, err := readWallet(ctx, l.db, code, false)
	return balance, err
}

// Credit adds amount to the wallet.
func (l *PostgresLedger) Credit(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return l.adjust(ctx, code, amount)
}

// Debit subtracts amount from the wallet, refusing to go below zero.
func (l *PostgresLedger) Debit(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return l.adjust(ctx, code, amount.Neg())
}

// adjust is a versioned compare-and-swap loop: a write that observes a stale
// version retries against the fresh row instead of overwriting it.
func (l *PostgresLedger) adjust(ctx context.Context, code string, delta decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		balance, version, err := readWallet(ctx, l.db, code, false)
		if err != nil {
			return decimal.Zero, err
		}
		next := balance.Add(delta)
		if next.IsNegative() {
			return balance, ErrInsufficientFunds
		}
		swapped, err := swapBalance(ctx, l.db, code, version, next)
		if err != nil {
			return decimal.Zero, err
		}
		if swapped {
			return next, nil
		}
	}
	return decimal.Zero, ErrConcurrentUpdate
}

// Record inserts an initiated transaction.
func (l *PostgresLedger) Record(ctx context.Context, tx Transaction) error {
	if err := ValidateAmount(tx.Amount); err != nil {
		return err
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.now()
	}
	_, err := l.db.Exec(ctx, `INSERT INTO transactions (reference, phone, wallet_code, kind, amount, status, gateway, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
		tx.Reference, tx.Phone, tx.WalletCode, string(tx.Kind), tx.Amount.String(), string(StatusInitiated), tx.Gateway, tx.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrDuplicateTransaction
			case pgForeignKeyViolation:
				return ErrWalletNotFound
			}
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Transaction fetches a transaction by reference.
func (l *PostgresLedger) Transaction(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(l.db.QueryRow(ctx, selectTransaction+` WHERE reference = $1`, reference))
}

// Settle locks the transaction row, and when it is still initiated applies the
// balance change and the terminal status in one database transaction.
func (l *PostgresLedger) Settle(ctx context.Context, reference string, outcome Outcome, reason string) (SettleResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettleResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanTransaction(tx.QueryRow(ctx, selectTransaction+` WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return SettleResult{}, err
	}
	if rec.Status.Terminal() {
		return SettleResult{Transaction: rec}, nil
	}

	now := l.now()
	if outcome != OutcomeSuccess {
		rec, err = finishTransaction(ctx, tx, rec, StatusFailed, reason, now)
		if err != nil {
			return SettleResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return SettleResult{}, err
		}
		return SettleResult{Transaction: rec, Transitioned: true}, nil
	}

	balance, version, err := readWallet(ctx, tx, rec.WalletCode, true)
	if err != nil {
		return SettleResult{}, err
	}
	next := balance.Add(rec.delta())
	if next.IsNegative() {
		rec, err = finishTransaction(ctx, tx, rec, StatusFailed, FailureReasonInsufficientFunds, now)
		if err != nil {
			return SettleResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return SettleResult{}, err
		}
		return SettleResult{Transaction: rec, Transitioned: true, Balance: balance}, ErrInsufficientFunds
	}

	swapped, err := swapBalance(ctx, tx, rec.WalletCode, version, next)
	if err != nil {
		return SettleResult{}, err
	}
	if !swapped {
		// Unreachable while the row lock is held.
		return SettleResult{}, ErrConcurrentUpdate
	}
	rec, err = finishTransaction(ctx, tx, rec, StatusSettled, "", now)
	if err != nil {
		return SettleResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SettleResult{}, err
	}
	return SettleResult{Transaction: rec, Transitioned: true, Balance: next}, nil
}

const selectTransaction = `SELECT reference, phone, wallet_code, kind, amount::text, status, gateway, failure_reason, created_at, settled_at
        FROM transactions`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx        Transaction
		kind      string
		amount    string
		status    string
		createdAt time.Time
		settledAt *time.Time
	)
	if err := row.Scan(&tx.Reference, &tx.Phone, &tx.WalletCode, &kind, &amount, &status, &tx.Gateway, &tx.FailureReason, &createdAt, &settledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Kind = Kind(kind)
	tx.Amount = parsed
	tx.Status = Status(status)
	tx.CreatedAt = createdAt.UTC()
	if settledAt != nil {
		at := settledAt.UTC()
		tx.SettledAt = &at
	}
	return tx, nil
}

func finishTransaction(ctx context.Context, q Querier, tx Transaction, status Status, reason string, at time.Time) (Transaction, error) {
	cmd, err := q.Exec(ctx, `UPDATE transactions SET status = $1, failure_reason = $2, settled_at = $3
        WHERE reference = $4 AND status = $5`, string(status), reason, at, tx.Reference, string(StatusInitiated))
	if err != nil {
		return Transaction{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Transaction{}, fmt.Errorf("transaction %s left initiated state concurrently", tx.Reference)
	}
	tx.Status = status
	tx.FailureReason = reason
	tx.SettledAt = &at
	return tx, nil
}

func readWallet(ctx context.Context, q Querier, code string, forUpdate bool) (decimal.Decimal, int64, error) {
	query := `SELECT balance::text, version FROM wallets WHERE code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		raw     string
		version int64
	)
	if err := q.QueryRow(ctx, query, code).Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, 0, ErrWalletNotFound
		}
		return decimal.Zero, 0, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return balance, version, nil
}

func swapBalance(ctx context.Context, q Querier, code string, version int64, next decimal.Decimal) (bool, error) {
	cmd, err := q.Exec(ctx, `UPDATE wallets SET balance = $1::numeric, version = version + 1, updated_at = now()
        WHERE code = $2 AND version = $3`, next.StringFixed(2), code, version)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
