package stubserver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testRefreshStoreRotation(t *testing.T, store RefreshTokenStore) {
	t.Helper()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Hour)

	tokenID, secret, issueErr := store.Issue(ctx, "u1", expiresAt, "")
	if issueErr != nil || tokenID == "" || secret == "" {
		t.Fatalf("issue error: %v (id=%q)", issueErr, tokenID)
	}

	userID, resolvedID, _, validateErr := store.Validate(ctx, secret)
	if validateErr != nil || userID != "u1" || resolvedID != tokenID {
		t.Fatalf("validate error: %v (user=%q id=%q)", validateErr, userID, resolvedID)
	}

	rotatedID, rotatedSecret, rotateErr := store.Issue(ctx, "u1", expiresAt, tokenID)
	if rotateErr != nil {
		t.Fatalf("rotate issue error: %v", rotateErr)
	}
	if revokeErr := store.Revoke(ctx, tokenID); revokeErr != nil {
		t.Fatalf("revoke error: %v", revokeErr)
	}

	if _, _, _, replayErr := store.Validate(ctx, secret); !errors.Is(replayErr, ErrTokenRevoked) {
		t.Fatalf("expected revoked error for old secret, got %v", replayErr)
	}
	if _, liveID, _, liveErr := store.Validate(ctx, rotatedSecret); liveErr != nil || liveID != rotatedID {
		t.Fatalf("expected rotated token live, got %v (id=%q)", liveErr, liveID)
	}

	if revokeErr := store.Revoke(ctx, tokenID); revokeErr != nil {
		t.Fatalf("second revoke should be a no-op, got %v", revokeErr)
	}
	if _, _, _, missErr := store.Validate(ctx, "never-issued"); !errors.Is(missErr, ErrTokenNotFound) {
		t.Fatalf("expected not found for unknown secret, got %v", missErr)
	}
	if _, _, _, blankErr := store.Validate(ctx, ""); !errors.Is(blankErr, ErrEmptyTokenSecret) {
		t.Fatalf("expected empty secret error, got %v", blankErr)
	}
}

func TestMemoryRefreshStoreRotation(t *testing.T) {
	testRefreshStoreRotation(t, NewMemoryRefreshStore())
}

func TestMemoryRefreshStoreExpiry(t *testing.T) {
	store := NewMemoryRefreshStore()
	current := time.Unix(1700000000, 0).UTC()
	store.now = func() time.Time { return current }

	ctx := context.Background()
	_, secret, issueErr := store.Issue(ctx, "u1", current.Add(time.Hour), "")
	if issueErr != nil {
		t.Fatalf("issue error: %v", issueErr)
	}

	current = current.Add(2 * time.Hour)
	if _, _, _, err := store.Validate(ctx, secret); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestDatabaseRefreshStoreRotation(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "stub.db")
	store, err := NewDatabaseRefreshStore(context.Background(), "sqlite://"+databasePath)
	if err != nil {
		t.Fatalf("store construction error: %v", err)
	}
	if store.Driver() != "sqlite" {
		t.Fatalf("unexpected driver: %q", store.Driver())
	}
	testRefreshStoreRotation(t, store)
}

func TestDatabaseRefreshStoreRejectsUnknownScheme(t *testing.T) {
	_, err := NewDatabaseRefreshStore(context.Background(), "mysql://localhost/stub")
	if err == nil || !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
	if _, emptyErr := NewDatabaseRefreshStore(context.Background(), ""); emptyErr == nil {
		t.Fatalf("expected error for empty database URL")
	}
}
