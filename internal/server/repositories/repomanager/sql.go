// Package repomanager provides a concrete RepositoryManager wiring together
// repository constructors and database migrations (via goose) for either
// PostgreSQL or SQLite.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/server/migrations"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/magiclinks"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/transactions"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends SQL-backed repository implementations and
// exposes a schema migration hook for its dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewSQLRepository(db)
}

// Transactions returns a transactions.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Transactions(db dbx.DBTX) transactions.Repository {
	return transactions.NewSQLRepository(db)
}

// MagicLinks returns a magiclinks.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) MagicLinks(db dbx.DBTX) magiclinks.Repository {
	return magiclinks.NewSQLRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Goose()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) RepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}
