package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	a1, err := DeriveKey([]byte("secret"), "magic-link")
	require.NoError(t, err)
	a2, err := DeriveKey([]byte("secret"), "magic-link")
	require.NoError(t, err)
	b, err := DeriveKey([]byte("secret"), "passport-app")
	require.NoError(t, err)
	c, err := DeriveKey([]byte("other"), "magic-link")
	require.NoError(t, err)

	assert.Len(t, a1, keySize)
	assert.Equal(t, a1, a2, "derivation must be deterministic")
	assert.NotEqual(t, a1, b, "purposes must not share keys")
	assert.NotEqual(t, a1, c, "secrets must not share keys")

	_, err = DeriveKey(nil, "x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
