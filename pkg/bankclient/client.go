// Package bankclient is the Go SDK client apps use to talk to the token
// bank: direct ledger calls and passport-bearing metering.
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
)

const defaultTimeout = 10 * time.Second

var (
	ErrUnauthorized      = errors.New("bankclient: unauthorized")
	ErrInsufficientFunds = errors.New("bankclient: insufficient funds")
	ErrBudgetExceeded    = errors.New("bankclient: session budget exceeded")
	ErrUnavailable       = errors.New("bankclient: ledger unavailable")
	ErrRateLimited       = errors.New("bankclient: rate limited")
	ErrBadRequest        = errors.New("bankclient: bad request")
	ErrConflict          = errors.New("bankclient: idempotency key conflict")
)

// APIError is any non-2xx answer that is not a funds rejection.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bankclient: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// InsufficientFundsError is a 402 answer, or a local passport budget check.
type InsufficientFundsError struct {
	Scope     string `json:"scope"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
	Shortfall int64  `json:"shortfall"`
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: %s has %d, %d required", ErrInsufficientFunds, e.Scope, e.Available, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	switch target {
	case ErrInsufficientFunds:
		return true
	case ErrBudgetExceeded:
		return e.Scope == common.ScopePassport
	}
	return false
}

type Client struct {
	baseURL      string
	serviceToken string
	http         *http.Client
}

type Option func(*Client)

func WithServiceToken(token string) Option {
	return func(c *Client) { c.serviceToken = token }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type DepositResult struct {
	Status        string `json:"status"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed"`
}

type SpendResult struct {
	Status        string `json:"status"`
	Remaining     int64  `json:"remaining"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed"`
}

type Passport struct {
	Token         string    `json:"passport"`
	SessionBudget int64     `json:"session_budget"`
	TotalBalance  int64     `json:"total_balance"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type Redemption struct {
	Approved        bool   `json:"approved"`
	Passport        string `json:"new_passport"`
	RemainingBudget int64  `json:"remaining_budget"`
	Balance         int64  `json:"balance"`
	Replayed        bool   `json:"replayed"`
}

type Plan struct {
	Name     string  `json:"name"`
	Tokens   int64   `json:"tokens"`
	PriceUSD float64 `json:"price_usd"`
	BestFor  string  `json:"best_for"`
}

type Pricing struct {
	Costs map[string]map[string]int64 `json:"costs"`
	Plans []Plan                      `json:"plans"`
}

// Cost looks up an operation price in the fetched catalog.
func (p *Pricing) Cost(appID, operation string) (int64, bool) {
	cost, ok := p.Costs[appID][operation]
	return cost, ok
}

func (c *Client) Balance(ctx context.Context, email string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	q := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodGet, "/balance?"+q.Encode(), nil, "", &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) Deposit(ctx context.Context, email string, tokens int64, paymentID, idempotencyKey string) (*DepositResult, error) {
	body := map[string]any{"email": email, "tokens": tokens, "payment_id": paymentID}
	var out DepositResult
	if err := c.do(ctx, http.MethodPost, "/deposit", body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Spend(ctx context.Context, email, appID string, tokens int64, description, idempotencyKey string) (*SpendResult, error) {
	body := map[string]any{"email": email, "app_id": appID, "tokens": tokens, "description": description}
	var out SpendResult
	if err := c.do(ctx, http.MethodPost, "/spend", body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IssuePassport(ctx context.Context, email, appID string) (*Passport, error) {
	body := map[string]any{"email": email, "app_id": appID}
	var out Passport
	if err := c.do(ctx, http.MethodPost, "/issue-passport", body, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RedeemPassport(ctx context.Context, passport, appID string, cost int64, description, idempotencyKey string) (*Redemption, error) {
	body := map[string]any{"passport": passport, "app_id": appID, "cost": cost, "description": description}
	var out Redemption
	if err := c.do(ctx, http.MethodPost, "/redeem-passport", body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Pricing(ctx context.Context) (*Pricing, error) {
	var out Pricing
	if err := c.do(ctx, http.MethodGet, "/pricing", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set(common.ServiceTokenHeaderName, c.serviceToken)
	}
	if idempotencyKey != "" {
		req.Header.Set(common.IdempotencyKeyHeaderName, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		var e InsufficientFundsError
		if err := json.Unmarshal(data, &e); err != nil || e.Scope == "" {
			e.Scope = common.ScopeLedger
		}
		return &e
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, RetryAfter: resp.Header.Get("Retry-After")}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
