package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/dbx"
)

// SQLRepository implements Repository over dbx.DBTX. The statements run
// unchanged on PostgreSQL and SQLite.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

// Credit upserts the account and returns the resulting balance and the
// sequence number of this movement.
func (r *SQLRepository) Credit(ctx context.Context, email string, amount int64) (int64, int64, error) {
	query := `
		INSERT INTO accounts (email, balance, tx_count, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (email) DO UPDATE
		SET balance = accounts.balance + excluded.balance, tx_count = accounts.tx_count + 1, updated_at = excluded.updated_at
		RETURNING balance, tx_count
	`
	var balance, seq int64
	if err := r.db.QueryRowContext(ctx, query, email, amount, time.Now().UTC()).Scan(&balance, &seq); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return balance, seq, nil
}

// Debit is the check-and-decrement in one conditional UPDATE. Two concurrent
// debits cannot both pass against the same stale balance.
func (r *SQLRepository) Debit(ctx context.Context, email string, amount int64) (int64, int64, bool, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $2, tx_count = tx_count + 1, updated_at = $3
		WHERE email = $1 AND balance >= $2
		RETURNING balance, tx_count
	`
	var balance, seq int64
	if err := r.db.QueryRowContext(ctx, query, email, amount, time.Now().UTC()).Scan(&balance, &seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("db error: %w", err)
	}
	return balance, seq, true, nil
}

// Balance returns common.ErrorNotFound for unknown accounts; it never creates one.
func (r *SQLRepository) Balance(ctx context.Context, email string) (int64, error) {
	query := `
		SELECT balance
		FROM accounts
		WHERE email = $1
	`
	var balance int64
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}
