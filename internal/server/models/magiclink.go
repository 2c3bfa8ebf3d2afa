package models

import "time"

type MagicLink struct {
	Token     string
	Email     string
	CreatedAt time.Time
	Used      bool
}
