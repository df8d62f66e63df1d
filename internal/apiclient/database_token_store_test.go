package apiclient

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newSQLiteTokenStore(t *testing.T) *DatabaseTokenStore {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "credentials.db")
	store, err := NewDatabaseTokenStore(context.Background(), "sqlite://"+cachePath)
	if err != nil {
		t.Fatalf("store construction error: %v", err)
	}
	return store
}

func TestDatabaseTokenStoreBundleRoundTrip(t *testing.T) {
	store := newSQLiteTokenStore(t)
	ctx := context.Background()

	bundle := TokenBundle{
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		ExpiresAt:        1700000000000,
		RefreshExpiresAt: 1700604800000,
	}
	if err := store.SaveBundle(ctx, bundle); err != nil {
		t.Fatalf("save error: %v", err)
	}
	loaded, found, loadErr := store.LoadBundle(ctx)
	if loadErr != nil || !found {
		t.Fatalf("load error: %v (found=%v)", loadErr, found)
	}
	if loaded != bundle {
		t.Fatalf("expected %#v, got %#v", bundle, loaded)
	}

	bundle.AccessToken = "access-2"
	if err := store.SaveBundle(ctx, bundle); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	loaded, _, _ = store.LoadBundle(ctx)
	if loaded.AccessToken != "access-2" {
		t.Fatalf("expected overwritten token, got %q", loaded.AccessToken)
	}
}

func TestDatabaseTokenStoreClear(t *testing.T) {
	store := newSQLiteTokenStore(t)
	ctx := context.Background()

	if err := store.SaveBundle(ctx, TokenBundle{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if err := store.SaveProfile(ctx, UserProfile{ID: "u1"}); err != nil {
		t.Fatalf("save profile error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	if _, found, _ := store.LoadBundle(ctx); found {
		t.Fatalf("expected bundle removed")
	}
	if _, found, _ := store.LoadProfile(ctx); found {
		t.Fatalf("expected profile removed")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear error: %v", err)
	}
}

func TestDatabaseTokenStoreEmptyLoad(t *testing.T) {
	store := newSQLiteTokenStore(t)
	if _, found, err := store.LoadBundle(context.Background()); err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestDatabaseTokenStoreRejectsUnknownScheme(t *testing.T) {
	_, err := NewDatabaseTokenStore(context.Background(), "mysql://localhost/cache")
	if err == nil || !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
	if _, emptyErr := NewDatabaseTokenStore(context.Background(), "  "); emptyErr == nil {
		t.Fatalf("expected error for empty cache URL")
	}
}
