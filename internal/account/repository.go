package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skaet/ussd_bank/internal/ledger"
)

// Repository persists accounts. Create provisions the account's wallet in the
// same unit of work: both rows exist afterwards or neither does.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByPhone(ctx context.Context, phone string) (Account, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the wallet and the account inside one transaction.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := ledger.OpenWallet(ctx, tx, account.WalletCode); err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO accounts (id, phone, first_name, last_name, pin_hash, wallet_code, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		accountID, account.Phone, account.FirstName, account.LastName, account.PINHash, account.WalletCode, account.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone, first_name, last_name, pin_hash, wallet_code, created_at
        FROM accounts WHERE phone = $1`, phone)
	var (
		id        uuid.UUID
		createdAt time.Time
		account   Account
	)
	if err := row.Scan(&id, &account.Phone, &account.FirstName, &account.LastName, &account.PINHash, &account.WalletCode, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	return account, nil
}
