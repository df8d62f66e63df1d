package apiclient

import (
	"context"
	"time"
)

// TokenBundle is the persisted access/refresh pair. Expiries are epoch
// milliseconds to match what the Copay backends hand out.
type TokenBundle struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresAt        int64  `json:"expiresAt"`
	RefreshExpiresAt int64  `json:"refreshExpiresAt"`
}

// AccessExpiry returns the access token expiry as a time.
func (bundle TokenBundle) AccessExpiry() time.Time {
	return time.UnixMilli(bundle.ExpiresAt).UTC()
}

// RefreshExpiry returns the refresh token expiry as a time.
func (bundle TokenBundle) RefreshExpiry() time.Time {
	return time.UnixMilli(bundle.RefreshExpiresAt).UTC()
}

// IsZero reports whether the bundle carries no tokens.
func (bundle TokenBundle) IsZero() bool {
	return bundle.AccessToken == "" && bundle.RefreshToken == ""
}

// UserProfile is the cached authenticated principal. It is refreshed
// opportunistically and never treated as the source of truth over a
// successful backend call.
type UserProfile struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// TokenStore persists a token bundle and the cached user profile.
type TokenStore interface {
	LoadBundle(ctx context.Context) (TokenBundle, bool, error)
	SaveBundle(ctx context.Context, bundle TokenBundle) error
	LoadProfile(ctx context.Context) (UserProfile, bool, error)
	SaveProfile(ctx context.Context, profile UserProfile) error
	// Clear removes the bundle and profile together. Safe to call when the
	// store is already empty.
	Clear(ctx context.Context) error
}
