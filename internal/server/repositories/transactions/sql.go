package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, email, seq, amount, description, balance_after, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	key := sql.NullString{String: t.IdempotencyKey, Valid: t.IdempotencyKey != ""}
	if _, err := r.db.ExecContext(ctx, query,
		t.ID, t.Email, t.Seq, t.Amount, t.Description, t.BalanceAfter, key, t.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListByEmail(ctx context.Context, email string, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, email, seq, amount, description, balance_after, idempotency_key, created_at
		FROM transactions
		WHERE email = $1
		ORDER BY seq
	`
	args := []any{email}
	if limit > 0 {
		query += `LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) FindByIdempotencyKey(ctx context.Context, email, key string) (*models.Transaction, error) {
	query := `
		SELECT id, email, seq, amount, description, balance_after, idempotency_key, created_at
		FROM transactions
		WHERE email = $1 AND idempotency_key = $2
	`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, email, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	var (
		t   models.Transaction
		key sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Email, &t.Seq, &t.Amount, &t.Description, &t.BalanceAfter, &key, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.IdempotencyKey = key.String
	return &t, nil
}
