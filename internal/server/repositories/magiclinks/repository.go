// Package magiclinks declares the repository contract for persisted
// magic-link login tokens.
package magiclinks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/server/models"
)

// Repository stores issued magic links and flips them to used exactly once.
type Repository interface {
	// Create stores a new, unused link.
	Create(ctx context.Context, token, email string, createdAt time.Time) error

	// Find returns the link for token or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.MagicLink, error)

	// MarkUsed consumes an unused link. It reports false when the token is
	// unknown or was already consumed.
	MarkUsed(ctx context.Context, token string) (bool, error)
}
