package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = "sqlite::memory:"
	cfg.EmailAPIKey = "re_test"
	cfg.EndpointAddrHTTP = "127.0.0.1:0"
	cfg.LogLevel = "error"
	return cfg
}

func TestNewApp_SQLite(t *testing.T) {
	app, err := NewApp(context.Background(), sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { app.close(context.Background()) })

	require.NotNil(t, app.server)
	assert.Nil(t, app.redis)
	require.NoError(t, app.db.PingContext(context.Background()))

	var n int
	require.NoError(t, app.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n))
	assert.Zero(t, n)
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"invalid config", func(c *config.Config) { c.SecretKey = "" }, "config error"},
		{"unsupported dsn", func(c *config.Config) { c.DatabaseDSN = "mysql://root@localhost/bank" }, "db init error"},
		{"unknown provider", func(c *config.Config) { c.EmailProvider = "smtp" }, "notifier init error"},
		{"missing email key", func(c *config.Config) { c.EmailAPIKey = "" }, "notifier init error"},
		{"redis unreachable", func(c *config.Config) { c.RedisAddr = "127.0.0.1:1" }, "rate limiter init error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sqliteConfig()
			tt.mutate(cfg)
			app, err := NewApp(context.Background(), cfg)
			assert.Nil(t, app)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestApp_MemoryLimiterByDefault(t *testing.T) {
	cfg := sqliteConfig()
	db, _, err := dbx.Open(cfg.DatabaseDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	app := &App{config: cfg, db: db}
	l, err := app.loginLimiter(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), sqliteConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Error(t, app.db.PingContext(context.Background()), "db must be closed after Run")
}
