package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const passportPurposePrefix = "passport-"

// Passport is the decoded form of a spending passport.
type Passport struct {
	ID        string
	Email     string
	AppID     string
	Budget    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PassportClaims is the signed payload. jti carries the passport id.
type PassportClaims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	AppID  string `json:"app_id"`
	Budget int64  `json:"budget"`
}

// PassportSigner signs passports with a key derived per app id, so a
// passport minted for one app never verifies as another's.
type PassportSigner struct {
	secret []byte
	now    func() time.Time
}

// NewPassportSigner keeps secret for per-app key derivation. A nil now uses time.Now.
func NewPassportSigner(secret []byte, now func() time.Time) (*PassportSigner, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &PassportSigner{secret: secret, now: clockOrDefault(now)}, nil
}

func (s *PassportSigner) keyFor(appID string) ([]byte, error) {
	return DeriveKey(s.secret, passportPurposePrefix+appID)
}

// Sign serializes p as-is; callers set IssuedAt, ExpiresAt and ID.
func (s *PassportSigner) Sign(p Passport) (string, error) {
	if p.AppID == "" || p.Email == "" || p.ID == "" {
		return "", errors.New("auth: passport requires id, email and app id")
	}
	if p.Budget < 0 {
		return "", errors.New("auth: negative passport budget")
	}

	key, err := s.keyFor(p.AppID)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, PassportClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.ID,
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		Email:  p.Email,
		AppID:  p.AppID,
		Budget: p.Budget,
	})
	return token.SignedString(key)
}

// Parse verifies signature and expiry. Tampered, foreign, expired or
// malformed passports all yield common.ErrInvalidToken.
func (s *PassportSigner) Parse(tokenString string) (*Passport, error) {
	claims := &PassportClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*PassportClaims)
		if !ok || c.AppID == "" {
			return nil, common.ErrInvalidToken
		}
		return s.keyFor(c.AppID)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Email == "" || claims.ID == "" || claims.Budget < 0 || claims.IssuedAt == nil {
		return nil, common.ErrInvalidToken
	}

	return &Passport{
		ID:        claims.ID,
		Email:     claims.Email,
		AppID:     claims.AppID,
		Budget:    claims.Budget,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
