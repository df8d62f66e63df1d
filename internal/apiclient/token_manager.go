package apiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"time"
)

// ErrNoTokens indicates no usable token bundle is stored.
var ErrNoTokens = errors.New("token_manager.no_tokens")

// TokenManager owns reads, writes, and clears of the token pair and cached
// profile across the fast store and the cookie mirror. Partial validity is
// disallowed: once the refresh expiry passes, both tokens are purged together.
type TokenManager struct {
	mutex   sync.Mutex
	fast    TokenStore
	cookies TokenStore
	clock   Clock
	logger  *zap.Logger
}

// NewTokenManager wires the two storage backends together.
func NewTokenManager(fast TokenStore, cookies TokenStore, clock Clock, logger *zap.Logger) *TokenManager {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		fast:    fast,
		cookies: cookies,
		clock:   clock,
		logger:  logger,
	}
}

// GetAccessToken returns a valid access token when one is stored and
// unexpired. The fast store is consulted first; the cookie mirror is
// re-synchronized when only the fast store holds a bundle.
func (manager *TokenManager) GetAccessToken(ctx context.Context) (string, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	bundle, found := manager.loadBundleLocked(ctx)
	if !found {
		return "", false
	}
	if manager.refreshExpiredLocked(ctx, bundle) {
		return "", false
	}
	if bundle.AccessToken == "" || !manager.clock.Now().Before(bundle.AccessExpiry()) {
		return "", false
	}
	return bundle.AccessToken, true
}

// GetRefreshToken returns the stored refresh token when it is unexpired.
func (manager *TokenManager) GetRefreshToken(ctx context.Context) (string, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	bundle, found := manager.loadBundleLocked(ctx)
	if !found {
		return "", false
	}
	if manager.refreshExpiredLocked(ctx, bundle) {
		return "", false
	}
	if bundle.RefreshToken == "" {
		return "", false
	}
	return bundle.RefreshToken, true
}

// Bundle returns the stored bundle without expiry filtering, for callers
// that need to inspect timestamps (e.g. the proactive refresh loop).
func (manager *TokenManager) Bundle(ctx context.Context) (TokenBundle, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.loadBundleLocked(ctx)
}

// SetTokens writes both tokens with computed absolute expiries to both
// backends. The two writes are sequential; a reader may observe staleness
// for at most the duration of the second write.
func (manager *TokenManager) SetTokens(ctx context.Context, accessToken string, refreshToken string, accessTTL time.Duration, refreshTTL time.Duration) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	now := manager.clock.Now()
	bundle := TokenBundle{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        now.Add(accessTTL).UnixMilli(),
		RefreshExpiresAt: now.Add(refreshTTL).UnixMilli(),
	}
	if err := manager.fast.SaveBundle(ctx, bundle); err != nil {
		return fmt.Errorf("token_manager.set_tokens.fast: %w", err)
	}
	if err := manager.cookies.SaveBundle(ctx, bundle); err != nil {
		return fmt.Errorf("token_manager.set_tokens.cookies: %w", err)
	}
	return nil
}

// ClearTokens removes tokens and the cached profile from both backends.
// Idempotent: clearing an empty pair of stores succeeds.
func (manager *TokenManager) ClearTokens(ctx context.Context) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.clearLocked(ctx)
}

// IsAuthenticated reports whether a usable session exists: either the access
// token is unexpired, or it is expired but the refresh token is not (the
// caller is expected to trigger a refresh before real calls). When both are
// expired the stores are purged and false is returned.
func (manager *TokenManager) IsAuthenticated(ctx context.Context) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	bundle, found := manager.loadBundleLocked(ctx)
	if !found {
		return false
	}
	now := manager.clock.Now()
	accessValid := bundle.AccessToken != "" && now.Before(bundle.AccessExpiry())
	refreshValid := bundle.RefreshToken != "" && now.Before(bundle.RefreshExpiry())
	if accessValid || refreshValid {
		return true
	}
	if err := manager.clearLocked(ctx); err != nil {
		manager.logger.Warn("failed to purge expired tokens",
			zap.String("code", "token_manager.purge_failed"),
			zap.Error(err))
	}
	return false
}

// Profile returns the cached user profile, if any.
func (manager *TokenManager) Profile(ctx context.Context) (UserProfile, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	profile, found, err := manager.fast.LoadProfile(ctx)
	if err == nil && found {
		return profile, true
	}
	profile, found, err = manager.cookies.LoadProfile(ctx)
	if err != nil || !found {
		return UserProfile{}, false
	}
	return profile, true
}

// SetProfile caches the profile in both backends.
func (manager *TokenManager) SetProfile(ctx context.Context, profile UserProfile) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if err := manager.fast.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("token_manager.set_profile.fast: %w", err)
	}
	if err := manager.cookies.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("token_manager.set_profile.cookies: %w", err)
	}
	return nil
}

func (manager *TokenManager) loadBundleLocked(ctx context.Context) (TokenBundle, bool) {
	bundle, found, err := manager.fast.LoadBundle(ctx)
	if err != nil {
		manager.logger.Warn("fast store read failed",
			zap.String("code", "token_manager.fast_read_failed"),
			zap.Error(err))
	}
	if err == nil && found {
		manager.resyncCookiesLocked(ctx, bundle)
		return bundle, true
	}
	bundle, found, err = manager.cookies.LoadBundle(ctx)
	if err != nil || !found {
		return TokenBundle{}, false
	}
	return bundle, true
}

// resyncCookiesLocked rewrites the cookie mirror when it lacks the bundle the
// fast store holds.
func (manager *TokenManager) resyncCookiesLocked(ctx context.Context, bundle TokenBundle) {
	mirrored, found, err := manager.cookies.LoadBundle(ctx)
	if err == nil && found && mirrored.AccessToken == bundle.AccessToken {
		return
	}
	if saveErr := manager.cookies.SaveBundle(ctx, bundle); saveErr != nil {
		manager.logger.Warn("cookie mirror resync failed",
			zap.String("code", "token_manager.cookie_resync_failed"),
			zap.Error(saveErr))
	}
}

// refreshExpiredLocked purges both stores when the refresh expiry has passed.
func (manager *TokenManager) refreshExpiredLocked(ctx context.Context, bundle TokenBundle) bool {
	if bundle.RefreshExpiresAt == 0 || manager.clock.Now().Before(bundle.RefreshExpiry()) {
		return false
	}
	if err := manager.clearLocked(ctx); err != nil {
		manager.logger.Warn("failed to purge expired tokens",
			zap.String("code", "token_manager.purge_failed"),
			zap.Error(err))
	}
	return true
}

func (manager *TokenManager) clearLocked(ctx context.Context) error {
	fastErr := manager.fast.Clear(ctx)
	cookieErr := manager.cookies.Clear(ctx)
	if fastErr != nil {
		return fmt.Errorf("token_manager.clear.fast: %w", fastErr)
	}
	if cookieErr != nil {
		return fmt.Errorf("token_manager.clear.cookies: %w", cookieErr)
	}
	return nil
}
