// Package common defines shared constants and sentinel errors used across
// repositories, services and the HTTP layer. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors. Malformed, tampered, expired, reused and unknown tokens
	// all collapse into ErrInvalidToken.
	ErrInvalidToken = errors.New("invalid token")

	// Ledger errors.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExceeded    = errors.New("session budget exceeded")
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrIdempotencyConflict is returned when an idempotency key already
	// recorded a different mutation on the same account.
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different request")

	// Validation errors.
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidRequest = errors.New("invalid request")

	// Login flow errors.
	ErrTooManyRequests    = errors.New("too many requests")
	ErrNotificationFailed = errors.New("notification failed")
)

// Scopes reported by InsufficientFundsError.
const (
	ScopeLedger   = "ledger"
	ScopePassport = "passport"
)

// InsufficientFundsError reports a rejected charge together with the amount
// requested and the amount that was actually available.
type InsufficientFundsError struct {
	Required  int64
	Available int64
	Scope     string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: %s has %d, %d required", ErrInsufficientFunds, e.Scope, e.Available, e.Required)
}

// Shortfall is the number of tokens missing to cover the charge.
func (e *InsufficientFundsError) Shortfall() int64 {
	if e.Required <= e.Available {
		return 0
	}
	return e.Required - e.Available
}

// Is matches ErrInsufficientFunds for every scope and ErrBudgetExceeded for
// passport-scoped rejections.
func (e *InsufficientFundsError) Is(target error) bool {
	switch target {
	case ErrInsufficientFunds:
		return true
	case ErrBudgetExceeded:
		return e.Scope == ScopePassport
	}
	return false
}

// Unavailable wraps a storage failure so that it matches ErrLedgerUnavailable
// while keeping the cause in the chain.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
}
