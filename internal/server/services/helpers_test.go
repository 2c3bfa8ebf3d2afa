package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

// newSQLiteDB opens a migrated in-memory database.
func newSQLiteDB(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	db, dialect, err := dbx.Open("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := repomanager.NewSQLRepositoryManager(dialect)
	require.NoError(t, m.RunMigrations(context.Background(), db))
	return db, m
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.PublicURL = "https://bank.example/"
	return cfg
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedEvent struct {
	kind, label string
	tokens      int64
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) add(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) LedgerOperation(op, result string, tokens int64) {
	r.add(recordedEvent{kind: "ledger:" + op, label: result, tokens: tokens})
}
func (r *fakeRecorder) PassportIssued() { r.add(recordedEvent{kind: "passport", label: "issued"}) }
func (r *fakeRecorder) PassportRedemption(result string) {
	r.add(recordedEvent{kind: "passport", label: result})
}
func (r *fakeRecorder) MagicLink(event string) { r.add(recordedEvent{kind: "magiclink", label: event}) }

func (r *fakeRecorder) count(kind, label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind && e.label == label {
			n++
		}
	}
	return n
}

func discard() logging.Logger { return logging.Discard() }
