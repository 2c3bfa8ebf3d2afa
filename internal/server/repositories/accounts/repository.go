// Package accounts declares the repository contract for token balances.
package accounts

import "context"

// Repository mutates and reads per-account balances. Every method is a
// single statement, so callers compose them inside dbx.WithTx.
type Repository interface {
	// Credit adds amount to the account, creating it when absent, and
	// returns the new balance. seq counts the movements of the account and
	// is assigned while the row is locked.
	Credit(ctx context.Context, email string, amount int64) (balance, seq int64, err error)

	// Debit subtracts amount only if the balance covers it. ok is false when
	// the account is missing or the balance is too low; nothing changes then.
	Debit(ctx context.Context, email string, amount int64) (balance, seq int64, ok bool, err error)

	// Balance returns the current balance or common.ErrorNotFound.
	Balance(ctx context.Context, email string) (int64, error)
}
