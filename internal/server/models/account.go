// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a token balance keyed by normalized email.
type Account struct {
	Email     string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
