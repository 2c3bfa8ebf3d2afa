// Package transactions declares the repository contract for the
// append-only ledger transaction log.
package transactions

import (
	"context"

	"github.com/dmitrijs2005/tokenbank/internal/server/models"
)

// Repository appends and reads transaction rows. There is no update or delete.
type Repository interface {
	// Create inserts t. An empty IdempotencyKey is stored as NULL.
	Create(ctx context.Context, t *models.Transaction) error

	// ListByEmail returns up to limit rows for email in Seq order.
	// limit <= 0 means no limit.
	ListByEmail(ctx context.Context, email string, limit int) ([]models.Transaction, error)

	// FindByIdempotencyKey returns the row recorded for (email, key) or
	// common.ErrorNotFound.
	FindByIdempotencyKey(ctx context.Context, email, key string) (*models.Transaction, error)
}
