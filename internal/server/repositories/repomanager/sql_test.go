package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/magiclinks"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/transactions"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewSQLRepositoryManager(dbx.Postgres)

	var _ accounts.Repository = m.Accounts(db)
	var _ transactions.Repository = m.Transactions(db)
	var _ magiclinks.Repository = m.MagicLinks(db)

	assert.IsType(t, &accounts.SQLRepository{}, m.Accounts(db))
	assert.IsType(t, &transactions.SQLRepository{}, m.Transactions(db))
	assert.IsType(t, &magiclinks.SQLRepository{}, m.MagicLinks(db))
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewSQLRepositoryManager(dbx.Postgres)
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewSQLRepositoryManager(dbx.Postgres)
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunMigrations_SQLiteSchema(t *testing.T) {
	db, dialect, err := dbx.Open("sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()

	m := NewSQLRepositoryManager(dialect)
	require.NoError(t, m.RunMigrations(context.Background(), db))

	for _, table := range []string{"accounts", "transactions", "magic_links"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	_, err = db.Exec(`INSERT INTO accounts (email, balance) VALUES ('neg@example.com', -1)`)
	assert.Error(t, err, "balance check constraint must reject negatives")
}
