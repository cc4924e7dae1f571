package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	token := "monday-access-token-xyz"

	sealed, err := Encrypt(token, testKey)
	require.NoError(t, err)
	assert.NotEqual(t, token, sealed)

	opened, err := Decrypt(sealed, testKey)
	require.NoError(t, err)
	assert.Equal(t, token, opened)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, err := Encrypt("same", testKey)
	require.NoError(t, err)
	b, err := Encrypt("same", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	sealed, err := Encrypt("secret", testKey)
	require.NoError(t, err)

	otherKey := strings.Repeat("ff", 32)
	_, err = Decrypt(sealed, otherKey)
	assert.Error(t, err)
}

func TestRejectsBadKey(t *testing.T) {
	_, err := Encrypt("x", "short")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
