package dbx

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend behind a DSN.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ErrUnsupportedDSN is returned by Open for DSNs that match neither backend.
var ErrUnsupportedDSN = errors.New("unsupported database DSN")

// Driver returns the database/sql driver name registered for the dialect.
func (d Dialect) Driver() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// Goose returns the goose dialect name for migrations.
func (d Dialect) Goose() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "pgx"
}

// ParseDSN detects the dialect of dsn and returns the string to hand to the driver.
//
//	postgres://... or postgresql://...   Postgres via pgx
//	sqlite:<path>, sqlite://<path>       SQLite via modernc, prefix stripped
//	file:<path>                          SQLite, passed through
func ParseDSN(dsn string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return SQLite, withBusyTimeout(strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return SQLite, withBusyTimeout(strings.TrimPrefix(dsn, "sqlite:")), nil
	case strings.HasPrefix(dsn, "file:"):
		return SQLite, withBusyTimeout(dsn), nil
	}
	return "", "", ErrUnsupportedDSN
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// Open opens a connection pool for dsn. SQLite pools are limited to a single
// connection: writers are serialized and ":memory:" databases stay shared.
// Callers must not use the pool directly while holding a transaction from it.
func Open(dsn string) (*sql.DB, Dialect, error) {
	dialect, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(dialect.Driver(), driverDSN)
	if err != nil {
		return nil, "", err
	}

	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	return db, dialect, nil
}
