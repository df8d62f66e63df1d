package stubserver

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type refreshRecord struct {
	tokenID     string
	userID      string
	secretHash  string
	expiresAt   time.Time
	revokedAt   time.Time
	rotatedFrom string
	issuedAt    time.Time
}

// MemoryRefreshStore is an in-memory RefreshTokenStore for tests and dev runs.
type MemoryRefreshStore struct {
	mutex   sync.Mutex
	records map[string]*refreshRecord
	byHash  map[string]string
	now     func() time.Time
}

// NewMemoryRefreshStore constructs an empty in-memory refresh token store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{
		records: make(map[string]*refreshRecord),
		byHash:  make(map[string]string),
		now:     time.Now,
	}
}

// Issue creates a new token, optionally recording the rotation predecessor.
func (store *MemoryRefreshStore) Issue(ctx context.Context, userID string, expiresAt time.Time, previousTokenID string) (string, string, error) {
	tokenID, idErr := newTokenID()
	if idErr != nil {
		return "", "", idErr
	}
	secret, secretHash, secretErr := newRefreshSecret()
	if secretErr != nil {
		return "", "", secretErr
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.records[tokenID] = &refreshRecord{
		tokenID:     tokenID,
		userID:      userID,
		secretHash:  secretHash,
		expiresAt:   expiresAt.UTC(),
		rotatedFrom: previousTokenID,
		issuedAt:    store.now().UTC(),
	}
	store.byHash[secretHash] = tokenID
	return tokenID, secret, nil
}

// Validate resolves a live token by its opaque secret.
func (store *MemoryRefreshStore) Validate(ctx context.Context, secret string) (string, string, time.Time, error) {
	if secret == "" {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate: %w", ErrEmptyTokenSecret)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	tokenID, ok := store.byHash[hashRefreshSecret(secret)]
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate: %w", ErrTokenNotFound)
	}
	record := store.records[tokenID]
	if record == nil {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate: %w", ErrTokenNotFound)
	}
	if !record.revokedAt.IsZero() {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate: %w", ErrTokenRevoked)
	}
	if record.expiresAt.Before(store.now().UTC()) {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate: %w", ErrTokenExpired)
	}
	return record.userID, record.tokenID, record.expiresAt, nil
}

// Revoke marks the token unusable; revoking twice is a no-op.
func (store *MemoryRefreshStore) Revoke(ctx context.Context, tokenID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.records[tokenID]
	if record == nil {
		return fmt.Errorf("refresh_store.revoke: %w", ErrTokenNotFound)
	}
	if record.revokedAt.IsZero() {
		record.revokedAt = store.now().UTC()
	}
	return nil
}
