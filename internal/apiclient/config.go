package apiclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when Config leaves a knob unset.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultAccessTokenTTL   = 7 * 24 * time.Hour
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
	DefaultRefreshInterval  = 5 * time.Minute
	DefaultRefreshThreshold = 10 * time.Minute
)

// RetryConfig holds retry configuration for dispatched requests.
type RetryConfig struct {
	// MaxRetries is the retry budget beyond the initial attempt.
	MaxRetries int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// MaxBackoff caps the computed backoff duration.
	MaxBackoff time.Duration

	// MaxJitter bounds the random jitter added to each backoff.
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the retry defaults for admin API requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BackoffBase: time.Second,
		MaxBackoff:  10 * time.Second,
		MaxJitter:   time.Second,
	}
}

// Config configures a Client. BaseURL is the only required field.
type Config struct {
	BaseURL string

	// Timeout bounds each individual network attempt.
	Timeout time.Duration

	Retry RetryConfig

	// AccessTokenTTL is applied when a login or refresh response omits
	// expiresIn and the access token carries no readable expiry.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the absolute lifetime applied to refresh tokens.
	RefreshTokenTTL time.Duration

	// RefreshInterval is the period of the proactive background refresh loop.
	RefreshInterval time.Duration

	// RefreshThreshold triggers a proactive refresh when the access token is
	// this close to expiry.
	RefreshThreshold time.Duration

	// FastStore is the local credential cache. Defaults to an in-memory store.
	FastStore TokenStore

	// CookieStore mirrors tokens as cookies on the backend origin. Defaults to
	// a jar-backed store scoped to BaseURL.
	CookieStore *CookieTokenStore

	// HTTPClient overrides the transport used for dispatch and refresh calls.
	HTTPClient *http.Client

	Logger *zap.Logger
	Clock  Clock

	// OnSessionExpired runs after a failed refresh tears the session down.
	// This is the only place the client forces a global side effect.
	OnSessionExpired func()

	// retrySleeper overrides backoff waits in tests.
	retrySleeper sleeper
}

func (configuration Config) withDefaults() Config {
	if configuration.Timeout <= 0 {
		configuration.Timeout = DefaultTimeout
	}
	if configuration.Retry == (RetryConfig{}) {
		configuration.Retry = DefaultRetryConfig()
	}
	if configuration.AccessTokenTTL <= 0 {
		configuration.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if configuration.RefreshTokenTTL <= 0 {
		configuration.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if configuration.RefreshInterval <= 0 {
		configuration.RefreshInterval = DefaultRefreshInterval
	}
	if configuration.RefreshThreshold <= 0 {
		configuration.RefreshThreshold = DefaultRefreshThreshold
	}
	if configuration.Logger == nil {
		configuration.Logger = zap.NewNop()
	}
	if configuration.Clock == nil {
		configuration.Clock = NewSystemClock()
	}
	return configuration
}
