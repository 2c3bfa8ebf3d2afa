package services

import (
	"strings"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/go-playground/validator/v10"
)

const emailRules = "required,email,max=320"

var validate = validator.New()

// NormalizeEmail trims and lower-cases email and requires a bare address
// without a display name. Accounts and magic links are keyed by the result.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(e, emailRules); err != nil {
		return "", common.ErrInvalidEmail
	}
	return e, nil
}
