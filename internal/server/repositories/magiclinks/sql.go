package magiclinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLRepository) Create(ctx context.Context, token, email string, createdAt time.Time) error {
	query := `
		INSERT INTO magic_links (token, email, created_at, used)
		VALUES ($1, $2, $3, FALSE)
	`
	if _, err := r.db.ExecContext(ctx, query, token, email, createdAt.UTC()); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *SQLRepository) Find(ctx context.Context, token string) (*models.MagicLink, error) {
	query := `
		SELECT token, email, created_at, used
		FROM magic_links
		WHERE token = $1
	`
	link := &models.MagicLink{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&link.Token, &link.Email, &link.CreatedAt, &link.Used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// MarkUsed is a compare-and-set on the used flag; of two concurrent calls
// for the same token at most one sees a row affected.
func (r *SQLRepository) MarkUsed(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE magic_links
		SET used = TRUE
		WHERE token = $1 AND used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
