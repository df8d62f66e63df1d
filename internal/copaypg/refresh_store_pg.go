package copaypg

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/copayhq/copayctl/internal/stubserver"
)

// PostgresRefreshStore persists rotating refresh tokens in PostgreSQL via pgx.
type PostgresRefreshStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshStore constructs a store over an existing pool.
func NewPostgresRefreshStore(pool *pgxpool.Pool) *PostgresRefreshStore {
	return &PostgresRefreshStore{pool: pool}
}

// Issue inserts a new token row and returns its identifier and opaque secret.
func (store *PostgresRefreshStore) Issue(ctx context.Context, userID string, expiresAt time.Time, previousTokenID string) (string, string, error) {
	tokenID, idErr := store.newTokenID()
	if idErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.pgx: %w", idErr)
	}
	secret, secretHash, secretErr := store.newSecret()
	if secretErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.pgx: %w", secretErr)
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_tokens (token_id, user_id, secret_hash, expires_at_ms, revoked_at_ms, rotated_from, issued_at_ms)
VALUES ($1, $2, $3, $4, 0, $5, $6)
`, tokenID, userID, secretHash, expiresAt.UTC().UnixMilli(), previousTokenID, time.Now().UTC().UnixMilli())
	if execErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.pgx: %w", execErr)
	}
	return tokenID, secret, nil
}

// Validate resolves a live token row by its opaque secret.
func (store *PostgresRefreshStore) Validate(ctx context.Context, secret string) (string, string, time.Time, error) {
	if secret == "" {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.pgx: %w", stubserver.ErrEmptyTokenSecret)
	}
	var userID string
	var tokenID string
	var expiresAtMs int64
	var revokedAtMs int64
	row := store.pool.QueryRow(ctx, `
SELECT user_id, token_id, expires_at_ms, revoked_at_ms
FROM refresh_tokens
WHERE secret_hash = $1
`, store.hash(secret))
	if scanErr := row.Scan(&userID, &tokenID, &expiresAtMs, &revokedAtMs); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.pgx: %w", stubserver.ErrTokenNotFound)
		}
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.pgx: %w", scanErr)
	}
	if revokedAtMs != 0 {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.pgx: %w", stubserver.ErrTokenRevoked)
	}
	expiresAt := time.UnixMilli(expiresAtMs).UTC()
	if expiresAt.Before(time.Now().UTC()) {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.pgx: %w", stubserver.ErrTokenExpired)
	}
	return userID, tokenID, expiresAt, nil
}

// Revoke marks the token row as revoked; revoking twice is a no-op.
func (store *PostgresRefreshStore) Revoke(ctx context.Context, tokenID string) error {
	_, err := store.pool.Exec(ctx, `
UPDATE refresh_tokens
SET revoked_at_ms = $1
WHERE token_id = $2 AND revoked_at_ms = 0
`, time.Now().UTC().UnixMilli(), tokenID)
	if err != nil {
		return fmt.Errorf("refresh_store.revoke.pgx: %w", err)
	}
	return nil
}

func (store *PostgresRefreshStore) newTokenID() (string, error) {
	randomBytes := make([]byte, 12)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return "rt_" + hex.EncodeToString(randomBytes), nil
}

func (store *PostgresRefreshStore) newSecret() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(randomBytes)
	return secret, store.hash(secret), nil
}

func (store *PostgresRefreshStore) hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
