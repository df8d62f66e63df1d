package apiclient

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func newTestTokenManager(t *testing.T, clock Clock) (*TokenManager, *MemoryTokenStore, *MemoryTokenStore) {
	t.Helper()
	fastStore := NewMemoryTokenStore()
	cookieStore := NewMemoryTokenStore()
	manager := NewTokenManager(fastStore, cookieStore, clock, zaptest.NewLogger(t))
	return manager, fastStore, cookieStore
}

func TestSetTokensRoundTrip(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, _, _ := newTestTokenManager(t, clock)
	ctx := context.Background()

	if err := manager.SetTokens(ctx, "access-1", "refresh-1", time.Hour, 24*time.Hour); err != nil {
		t.Fatalf("set tokens error: %v", err)
	}
	accessToken, ok := manager.GetAccessToken(ctx)
	if !ok || accessToken != "access-1" {
		t.Fatalf("expected access-1, got %q (ok=%v)", accessToken, ok)
	}
	refreshToken, ok := manager.GetRefreshToken(ctx)
	if !ok || refreshToken != "refresh-1" {
		t.Fatalf("expected refresh-1, got %q (ok=%v)", refreshToken, ok)
	}
}

func TestSetTokensComputesAbsoluteExpiries(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, fastStore, _ := newTestTokenManager(t, clock)
	ctx := context.Background()

	if err := manager.SetTokens(ctx, "access-1", "refresh-1", 604800*time.Second, 604800*time.Second); err != nil {
		t.Fatalf("set tokens error: %v", err)
	}
	bundle, found, _ := fastStore.LoadBundle(ctx)
	if !found {
		t.Fatalf("expected bundle in fast store")
	}
	wantExpiry := clock.current.Add(604800 * time.Second).UnixMilli()
	if bundle.ExpiresAt != wantExpiry {
		t.Fatalf("expected access expiry %d, got %d", wantExpiry, bundle.ExpiresAt)
	}
}

func TestIsAuthenticatedTruthTable(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		accessTTL  time.Duration
		refreshTTL time.Duration
		advance    time.Duration
		want       bool
	}{
		{name: "both valid", accessTTL: time.Hour, refreshTTL: 24 * time.Hour, advance: 0, want: true},
		{name: "access expired refresh valid", accessTTL: time.Minute, refreshTTL: 24 * time.Hour, advance: time.Hour, want: true},
		{name: "both expired", accessTTL: time.Minute, refreshTTL: time.Hour, advance: 2 * time.Hour, want: false},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
			manager, _, _ := newTestTokenManager(t, clock)
			if err := manager.SetTokens(ctx, "access-1", "refresh-1", testCase.accessTTL, testCase.refreshTTL); err != nil {
				t.Fatalf("set tokens error: %v", err)
			}
			clock.Advance(testCase.advance)
			if got := manager.IsAuthenticated(ctx); got != testCase.want {
				t.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestIsAuthenticatedPurgesOnDualExpiry(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, fastStore, cookieStore := newTestTokenManager(t, clock)
	ctx := context.Background()

	if err := manager.SetTokens(ctx, "access-1", "refresh-1", time.Minute, time.Hour); err != nil {
		t.Fatalf("set tokens error: %v", err)
	}
	clock.Advance(2 * time.Hour)

	if manager.IsAuthenticated(ctx) {
		t.Fatalf("expected unauthenticated after dual expiry")
	}
	if _, found, _ := fastStore.LoadBundle(ctx); found {
		t.Fatalf("expected fast store purged")
	}
	if _, found, _ := cookieStore.LoadBundle(ctx); found {
		t.Fatalf("expected cookie store purged")
	}
}

func TestClearTokensIsIdempotent(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, fastStore, _ := newTestTokenManager(t, clock)
	ctx := context.Background()

	if err := manager.SetTokens(ctx, "access-1", "refresh-1", time.Hour, time.Hour); err != nil {
		t.Fatalf("set tokens error: %v", err)
	}
	if err := manager.ClearTokens(ctx); err != nil {
		t.Fatalf("first clear error: %v", err)
	}
	if err := manager.ClearTokens(ctx); err != nil {
		t.Fatalf("second clear error: %v", err)
	}
	if _, found, _ := fastStore.LoadBundle(ctx); found {
		t.Fatalf("expected empty store after double clear")
	}
	if _, ok := manager.GetAccessToken(ctx); ok {
		t.Fatalf("expected no access token after clear")
	}
}

func TestGetAccessTokenResyncsCookieMirror(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, fastStore, cookieStore := newTestTokenManager(t, clock)
	ctx := context.Background()

	bundle := TokenBundle{
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		ExpiresAt:        clock.current.Add(time.Hour).UnixMilli(),
		RefreshExpiresAt: clock.current.Add(24 * time.Hour).UnixMilli(),
	}
	if err := fastStore.SaveBundle(ctx, bundle); err != nil {
		t.Fatalf("seed fast store: %v", err)
	}

	accessToken, ok := manager.GetAccessToken(ctx)
	if !ok || accessToken != "access-1" {
		t.Fatalf("expected access-1, got %q (ok=%v)", accessToken, ok)
	}
	mirrored, found, _ := cookieStore.LoadBundle(ctx)
	if !found || mirrored.AccessToken != "access-1" {
		t.Fatalf("expected cookie mirror resynced, got %#v (found=%v)", mirrored, found)
	}
}

func TestGetAccessTokenFallsBackToCookieStore(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, _, cookieStore := newTestTokenManager(t, clock)
	ctx := context.Background()

	bundle := TokenBundle{
		AccessToken:      "cookie-access",
		RefreshToken:     "cookie-refresh",
		ExpiresAt:        clock.current.Add(time.Hour).UnixMilli(),
		RefreshExpiresAt: clock.current.Add(24 * time.Hour).UnixMilli(),
	}
	if err := cookieStore.SaveBundle(ctx, bundle); err != nil {
		t.Fatalf("seed cookie store: %v", err)
	}

	accessToken, ok := manager.GetAccessToken(ctx)
	if !ok || accessToken != "cookie-access" {
		t.Fatalf("expected cookie-access, got %q (ok=%v)", accessToken, ok)
	}
}

func TestGetAccessTokenExpiredAccessStillRefreshable(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, _, _ := newTestTokenManager(t, clock)
	ctx := context.Background()

	if err := manager.SetTokens(ctx, "access-1", "refresh-1", time.Minute, 24*time.Hour); err != nil {
		t.Fatalf("set tokens error: %v", err)
	}
	clock.Advance(time.Hour)

	if _, ok := manager.GetAccessToken(ctx); ok {
		t.Fatalf("expected no access token once expired")
	}
	if _, ok := manager.GetRefreshToken(ctx); !ok {
		t.Fatalf("expected refresh token to remain available")
	}
}

func TestProfileRoundTrip(t *testing.T) {
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager, _, _ := newTestTokenManager(t, clock)
	ctx := context.Background()

	profile := UserProfile{ID: "u1", Phone: "0788000000", FirstName: "A", LastName: "B", Role: "SUPER_ADMIN"}
	if err := manager.SetProfile(ctx, profile); err != nil {
		t.Fatalf("set profile error: %v", err)
	}
	cached, found := manager.Profile(ctx)
	if !found || cached != profile {
		t.Fatalf("expected cached profile %#v, got %#v (found=%v)", profile, cached, found)
	}
}
