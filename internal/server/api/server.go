// Package api is the HTTP surface of the token bank: the ledger and
// passport endpoints used by client apps and the magic-link login boundary.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/metrics"
	"github.com/dmitrijs2005/tokenbank/internal/server/models"
	"github.com/dmitrijs2005/tokenbank/internal/server/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

type Ledger interface {
	Deposit(ctx context.Context, email string, tokens int64, paymentReference, idempotencyKey string) (*services.LedgerResult, error)
	Spend(ctx context.Context, email string, tokens int64, appID, description, idempotencyKey string) (*services.LedgerResult, error)
	GetBalance(ctx context.Context, email string) (int64, error)
	History(ctx context.Context, email string, limit int) ([]models.Transaction, error)
}

type Authenticator interface {
	RequestLogin(ctx context.Context, email string) error
	Verify(ctx context.Context, token string, maxAge time.Duration, markUsed bool) (string, error)
	Authenticate(ctx context.Context, token string) (string, error)
	MaxAge() time.Duration
}

type Passports interface {
	Issue(ctx context.Context, email, appID string) (*services.IssuedPassport, error)
	Redeem(ctx context.Context, token, appID string, cost int64, description, idempotencyKey string) (*services.Redemption, error)
}

type Statements interface {
	Export(ctx context.Context, email string) (*services.StatementExport, error)
}

// Services groups what the handlers call into. Metrics and Health are optional.
type Services struct {
	Ledger     Ledger
	Auth       Authenticator
	Passports  Passports
	Statements Statements
	Pricing    *services.PricingCatalog
	Metrics    *metrics.Metrics
	Health     func(ctx context.Context) error
}

type Server struct {
	address string
	config  *config.Config
	logger  logging.Logger
	svc     Services
	echo    *echo.Echo
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

func NewServer(cfg *config.Config, l logging.Logger, svc Services) *Server {
	s := &Server{
		address: cfg.EndpointAddrHTTP,
		config:  cfg,
		logger:  l.With("module", "http_server"),
		svc:     svc,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(s.requestLogger)
	if svc.Metrics != nil {
		e.Use(svc.Metrics.Middleware())
	}

	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", s.health)
	if s.svc.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.svc.Metrics.Handler()))
	}
	e.GET("/pricing", s.pricing)

	e.POST("/login", s.login)
	e.GET("/auth", s.authCallback)
	e.GET("/me", s.me)
	e.GET("/logout", s.logout)

	guard := s.requireServiceToken
	e.POST("/deposit", s.deposit, guard)
	e.POST("/spend", s.spend, guard)
	e.GET("/balance", s.balance, guard)
	e.GET("/transactions", s.transactions, guard)
	e.POST("/issue-passport", s.issuePassport, guard)
	e.POST("/redeem-passport", s.redeemPassport, guard)
	e.GET("/statement", s.statement, guard)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
