// Package auth signs and verifies the two bearer artifacts of the bank:
// magic-link login tokens and spending passports. Both are HS256 JWTs whose
// keys are derived from one master secret, one key per purpose.
package auth

import (
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32

// ErrEmptySecret is returned by constructors given no master secret.
var ErrEmptySecret = errors.New("auth: empty secret")

// DeriveKey returns a purpose-bound HMAC key expanded from secret with HKDF-SHA256.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
