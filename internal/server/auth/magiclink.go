package auth

import (
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const magicLinkPurpose = "magic-link"

// MagicLinkClaims binds an email to an issue time. The jti makes every
// token unique even for two requests in the same second.
type MagicLinkClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// MagicLinkSigner mints and checks magic-link tokens.
type MagicLinkSigner struct {
	key []byte
	now func() time.Time
}

// NewMagicLinkSigner derives the magic-link key from secret. A nil now uses time.Now.
func NewMagicLinkSigner(secret []byte, now func() time.Time) (*MagicLinkSigner, error) {
	key, err := DeriveKey(secret, magicLinkPurpose)
	if err != nil {
		return nil, err
	}
	return &MagicLinkSigner{key: key, now: clockOrDefault(now)}, nil
}

// Sign returns a token for email stamped with the current time.
func (s *MagicLinkSigner) Sign(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MagicLinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
			ID:       uuid.NewString(),
		},
		Email: email,
	})
	return token.SignedString(s.key)
}

// Parse verifies the signature and that the token is at most maxAge old,
// returning the bound email. Every failure is common.ErrInvalidToken.
//
// iat carries jwt.TimePrecision, so the age is compared at that precision and
// a token is never rejected before maxAge has passed. Callers holding the
// exact issue time check it themselves.
func (s *MagicLinkSigner) Parse(tokenString string, maxAge time.Duration) (string, error) {
	claims := &MagicLinkClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", common.ErrInvalidToken
	}

	if claims.IssuedAt == nil || claims.Email == "" {
		return "", common.ErrInvalidToken
	}
	if s.now().Truncate(jwt.TimePrecision).Sub(claims.IssuedAt.Time) > maxAge {
		return "", common.ErrInvalidToken
	}

	return claims.Email, nil
}
