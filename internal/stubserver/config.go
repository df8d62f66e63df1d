// Package stubserver implements a local Copay backend for CLI development and
// end-to-end tests: phone/PIN login, rotating refresh tokens, and fixture-backed
// admin resources.
package stubserver

import (
	"net/http"
	"time"
)

const (
	accessCookieName  = "copay_access"
	refreshCookieName = "copay_refresh"

	defaultIssuer         = "copay-stub"
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultThrottleWindow = time.Minute
	defaultThrottleLimit  = 5
)

// ServerConfig configures token issuance, cookies, and the login throttle.
type ServerConfig struct {
	SigningKey        []byte
	Issuer            string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	CookieDomain      string
	SameSiteMode      http.SameSite
	AllowInsecureHTTP bool
	ThrottleWindow    time.Duration
	ThrottleLimit     int
}

func (configuration ServerConfig) withDefaults() ServerConfig {
	if configuration.Issuer == "" {
		configuration.Issuer = defaultIssuer
	}
	if configuration.AccessTTL <= 0 {
		configuration.AccessTTL = defaultAccessTTL
	}
	if configuration.RefreshTTL <= 0 {
		configuration.RefreshTTL = defaultRefreshTTL
	}
	if configuration.SameSiteMode == 0 {
		configuration.SameSiteMode = http.SameSiteStrictMode
	}
	if configuration.ThrottleWindow <= 0 {
		configuration.ThrottleWindow = defaultThrottleWindow
	}
	if configuration.ThrottleLimit <= 0 {
		configuration.ThrottleLimit = defaultThrottleLimit
	}
	return configuration
}
