package models

import "time"

// Transaction is one immutable ledger movement. Amount is positive for
// deposits and negative for spends; BalanceAfter is the account balance
// right after the movement was applied. Seq numbers the movements of one
// account from 1 in the order they took the account row.
type Transaction struct {
	ID             string
	Email          string
	Seq            int64
	Amount         int64
	Description    string
	BalanceAfter   int64
	IdempotencyKey string
	CreatedAt      time.Time
}
