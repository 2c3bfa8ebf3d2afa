package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/auth"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/google/uuid"
)

// Ledger is the part of LedgerService the passport flow depends on.
type Ledger interface {
	GetBalance(ctx context.Context, email string) (int64, error)
	Spend(ctx context.Context, email string, tokens int64, appID, description, idempotencyKey string) (*LedgerResult, error)
}

// IssuedPassport is a freshly minted passport and the figures it was cut from.
type IssuedPassport struct {
	Token         string
	Passport      auth.Passport
	SessionBudget int64
	TotalBalance  int64
}

// Redemption is the outcome of an approved passport spend.
type Redemption struct {
	Approved bool
	// Token is the re-signed passport with the reduced budget.
	Token string
	// RemainingBudget is what the new passport still allows.
	RemainingBudget int64
	// Balance is the ledger balance after the spend.
	Balance  int64
	Replayed bool
}

// SessionBudget is min(cap, balance/divisor), or 0 for an empty account.
func SessionBudget(balance, cap, divisor int64) int64 {
	if balance <= 0 || divisor <= 0 {
		return 0
	}
	budget := balance / divisor
	if budget > cap {
		budget = cap
	}
	return budget
}

// PassportService mints spending passports and redeems them against the
// ledger. Passports are not stored; each approved redeem returns a new one.
type PassportService struct {
	ledger   Ledger
	signer   *auth.PassportSigner
	cap      int64
	divisor  int64
	validity time.Duration
	logger   logging.Logger
	recorder Recorder
	now      func() time.Time
}

// NewPassportService builds the service from cfg. A nil now uses time.Now;
// recorder may be nil.
func NewPassportService(ledger Ledger, cfg *config.Config, logger logging.Logger, recorder Recorder, now func() time.Time) (*PassportService, error) {
	if now == nil {
		now = time.Now
	}
	signer, err := auth.NewPassportSigner([]byte(cfg.SecretKey), now)
	if err != nil {
		return nil, err
	}
	return &PassportService{
		ledger:   ledger,
		signer:   signer,
		cap:      cfg.PassportBudgetCap,
		divisor:  cfg.PassportBudgetDivisor,
		validity: cfg.PassportValidityDuration,
		logger:   logger.With("module", "passport"),
		recorder: recorderOrNop(recorder),
		now:      now,
	}, nil
}

// Issue mints a passport for email and appID budgeted from the current balance.
func (s *PassportService) Issue(ctx context.Context, email, appID string) (*IssuedPassport, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, fmt.Errorf("%w: app id is required", common.ErrInvalidRequest)
	}

	balance, err := s.ledger.GetBalance(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := auth.Passport{
		ID:        uuid.NewString(),
		Email:     email,
		AppID:     appID,
		Budget:    SessionBudget(balance, s.cap, s.divisor),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.validity),
	}

	token, err := s.signer.Sign(p)
	if err != nil {
		return nil, fmt.Errorf("error signing passport: %w", err)
	}

	s.recorder.PassportIssued()
	s.logger.Info(ctx, "passport issued", "passport_id", p.ID, "app_id", appID, "budget", p.Budget)

	return &IssuedPassport{Token: token, Passport: p, SessionBudget: p.Budget, TotalBalance: balance}, nil
}

// Redeem charges cost against the passport. appID, when set, must match the
// passport's app. A cost above the remaining budget is rejected before the
// ledger is contacted. A ledger rejection is returned unchanged and the
// caller keeps the old passport.
func (s *PassportService) Redeem(ctx context.Context, token, appID string, cost int64, description, idempotencyKey string) (*Redemption, error) {
	if cost <= 0 {
		return nil, common.ErrInvalidAmount
	}

	p, err := s.signer.Parse(token)
	if err != nil {
		s.recorder.PassportRedemption(ResultInvalid)
		return nil, common.ErrInvalidToken
	}
	if appID = strings.TrimSpace(appID); appID != "" && appID != p.AppID {
		s.recorder.PassportRedemption(ResultInvalid)
		return nil, common.ErrInvalidToken
	}

	if cost > p.Budget {
		s.recorder.PassportRedemption(ResultRejected)
		return nil, &common.InsufficientFundsError{Required: cost, Available: p.Budget, Scope: common.ScopePassport}
	}

	res, err := s.ledger.Spend(ctx, p.Email, cost, p.AppID, description, idempotencyKey)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientFunds) {
			s.recorder.PassportRedemption(ResultInsufficient)
		} else {
			s.recorder.PassportRedemption(ResultError)
		}
		return nil, err
	}

	p.Budget -= cost
	newToken, err := s.signer.Sign(*p)
	if err != nil {
		return nil, fmt.Errorf("error signing passport: %w", err)
	}

	s.recorder.PassportRedemption(ResultOK)
	s.logger.Info(ctx, "passport redeemed", "passport_id", p.ID, "cost", cost, "remaining_budget", p.Budget)

	return &Redemption{
		Approved:        true,
		Token:           newToken,
		RemainingBudget: p.Budget,
		Balance:         res.Balance,
		Replayed:        res.Replayed,
	}, nil
}
