package stubserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	tokenIDByteLength       = 12
	refreshSecretByteLength = 32
)

func newTokenID() (string, error) {
	randomBytes := make([]byte, tokenIDByteLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("refresh_store.token_id: %w", err)
	}
	return "rt_" + hex.EncodeToString(randomBytes), nil
}

func newRefreshSecret() (string, string, error) {
	randomBytes := make([]byte, refreshSecretByteLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("refresh_store.secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(randomBytes)
	return secret, hashRefreshSecret(secret), nil
}

func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func hashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}
