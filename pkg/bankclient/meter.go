package bankclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tokenbank/internal/common"
)

var (
	ErrNoPassport  = errors.New("bankclient: no passport")
	ErrInvalidCost = errors.New("bankclient: cost must not be negative")
)

// Meter holds one app's passport for one user and charges operations
// against it. Calls are serialized because each redemption replaces the
// passport.
type Meter struct {
	client *Client
	appID  string

	mu       sync.Mutex
	passport string
	budget   int64
}

func NewMeter(client *Client, appID string) *Meter {
	return &Meter{client: client, appID: appID}
}

// Start issues a fresh passport for email.
func (m *Meter) Start(ctx context.Context, email string) (*Passport, error) {
	p, err := m.client.IssuePassport(ctx, email, m.appID)
	if err != nil {
		return nil, err
	}
	m.SetPassport(p.Token, p.SessionBudget)
	return p, nil
}

// SetPassport restores a passport kept by the caller, e.g. in its own session.
func (m *Meter) SetPassport(token string, budget int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passport, m.budget = token, budget
}

func (m *Meter) Passport() (string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passport, m.budget
}

// CheckAndSpend charges cost for operation. Zero-cost operations are
// approved without contacting the bank, and a cost above the remaining
// budget is rejected locally. A redemption that fails as unavailable is
// retried once under the same idempotency key.
func (m *Meter) CheckAndSpend(ctx context.Context, operation string, cost int64) (*Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cost < 0 {
		return nil, ErrInvalidCost
	}
	if m.passport == "" {
		return nil, ErrNoPassport
	}
	if cost == 0 {
		return &Redemption{Approved: true, Passport: m.passport, RemainingBudget: m.budget}, nil
	}
	if cost > m.budget {
		return nil, &InsufficientFundsError{
			Scope:     common.ScopePassport,
			Required:  cost,
			Available: m.budget,
			Shortfall: cost - m.budget,
		}
	}

	key, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("bankclient: idempotency key: %w", err)
	}

	r, err := m.client.RedeemPassport(ctx, m.passport, m.appID, cost, operation, key)
	if errors.Is(err, ErrUnavailable) && ctx.Err() == nil {
		r, err = m.client.RedeemPassport(ctx, m.passport, m.appID, cost, operation, key)
	}
	if err != nil {
		return nil, err
	}

	m.passport, m.budget = r.Passport, r.RemainingBudget
	return r, nil
}
