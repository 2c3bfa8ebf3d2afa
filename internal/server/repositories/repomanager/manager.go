package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/magiclinks"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/transactions"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Transactions(db dbx.DBTX) transactions.Repository
	MagicLinks(db dbx.DBTX) magiclinks.Repository
}
