// Package crypto encrypts monday access tokens before they reach Postgres.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrInvalidKey = errors.New("encryption key must be 32 bytes hex-encoded")

func parseKey(hexKey string) (*[32]byte, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Encrypt seals plaintext with a random nonce and returns base64(nonce||box).
func Encrypt(plaintext, hexKey string) (string, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return "", err
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded, hexKey string) (string, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(sealed) < 24 {
		return "", errors.New("ciphertext too short")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return "", errors.New("decryption failed")
	}
	return string(plaintext), nil
}
