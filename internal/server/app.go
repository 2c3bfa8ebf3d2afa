// Package server wires the token bank together: it opens the database, runs
// migrations, builds the services and serves the HTTP API until a shutdown
// signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tokenbank/internal/dbx"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/api"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/metrics"
	"github.com/dmitrijs2005/tokenbank/internal/server/notify"
	"github.com/dmitrijs2005/tokenbank/internal/server/ratelimit"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenbank/internal/server/services"
	"github.com/go-redis/redis/v8"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	server *api.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, dialect, err := dbx.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	if err := app.build(ctx, dialect); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context, dialect dbx.Dialect) error {
	c := app.config

	m := repomanager.NewSQLRepositoryManager(dialect)
	if err := m.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	notifier, err := notify.New(c)
	if err != nil {
		return fmt.Errorf("notifier init error: %w", err)
	}

	limiter, err := app.loginLimiter(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter init error: %w", err)
	}

	met := metrics.New()

	ledger := services.NewLedgerService(app.db, m, app.logger, met)

	auth, err := services.NewMagicLinkService(app.db, m, c, notifier, limiter, app.logger, met, nil)
	if err != nil {
		return fmt.Errorf("authenticator init error: %w", err)
	}

	passports, err := services.NewPassportService(ledger, c, app.logger, met, nil)
	if err != nil {
		return fmt.Errorf("passport issuer init error: %w", err)
	}

	app.server = api.NewServer(c, app.logger, api.Services{
		Ledger:     ledger,
		Auth:       auth,
		Passports:  passports,
		Statements: services.NewStatementService(ledger, c, app.logger),
		Pricing:    services.DefaultPricing(),
		Metrics:    met,
		Health:     app.db.PingContext,
	})
	return nil
}

// loginLimiter shares throttling state through Redis when it is configured.
func (app *App) loginLimiter(ctx context.Context) (services.LoginLimiter, error) {
	c := app.config
	if c.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(c.LoginRateLimit, c.LoginRateWindow), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword)
	if err != nil {
		return nil, err
	}
	app.redis = client
	return ratelimit.NewRedisLimiter(client, c.LoginRateLimit, c.LoginRateWindow), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
}
