package apiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
)

// Cookie names mirrored onto the backend origin.
const (
	accessCookieName        = "copay_access"
	refreshCookieName       = "copay_refresh"
	accessExpiryCookieName  = "copay_access_expiry"
	refreshExpiryCookieName = "copay_refresh_expiry"
	profileCookieName       = "copay_profile"
)

// CookieTokenStore mirrors the token bundle as cookies scoped to the backend
// origin. A jar only yields name/value pairs back, so expiries ride along as
// companion epoch-ms cookies. Cookies are marked Secure with SameSite=Strict
// when the origin is served over https.
type CookieTokenStore struct {
	jar     http.CookieJar
	baseURL *url.URL
	secure  bool
}

// NewCookieTokenStore builds a store for the given backend base URL. When jar
// is nil a fresh in-memory jar is created; pass the same jar to the HTTP
// client so mirrored tokens ride on outgoing requests.
func NewCookieTokenStore(jar http.CookieJar, baseURL string) (*CookieTokenStore, error) {
	parsed, parseErr := url.Parse(baseURL)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("cookie_store.base_url: invalid base URL %q", baseURL)
	}
	if jar == nil {
		created, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, fmt.Errorf("cookie_store.jar: %w", jarErr)
		}
		jar = created
	}
	return &CookieTokenStore{
		jar:     jar,
		baseURL: parsed,
		secure:  strings.EqualFold(parsed.Scheme, "https"),
	}, nil
}

// Jar exposes the underlying jar for sharing with an http.Client.
func (store *CookieTokenStore) Jar() http.CookieJar {
	return store.jar
}

// LoadBundle reads the mirrored bundle from the jar.
func (store *CookieTokenStore) LoadBundle(ctx context.Context) (TokenBundle, bool, error) {
	values := store.cookieValues()
	bundle := TokenBundle{
		AccessToken:  values[accessCookieName],
		RefreshToken: values[refreshCookieName],
	}
	if bundle.IsZero() {
		return TokenBundle{}, false, nil
	}
	if raw, ok := values[accessExpiryCookieName]; ok {
		if parsed, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			bundle.ExpiresAt = parsed
		}
	}
	if raw, ok := values[refreshExpiryCookieName]; ok {
		if parsed, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			bundle.RefreshExpiresAt = parsed
		}
	}
	return bundle, true, nil
}

// SaveBundle mirrors the bundle onto the origin.
func (store *CookieTokenStore) SaveBundle(ctx context.Context, bundle TokenBundle) error {
	store.jar.SetCookies(store.baseURL, []*http.Cookie{
		store.newCookie(accessCookieName, bundle.AccessToken),
		store.newCookie(refreshCookieName, bundle.RefreshToken),
		store.newCookie(accessExpiryCookieName, strconv.FormatInt(bundle.ExpiresAt, 10)),
		store.newCookie(refreshExpiryCookieName, strconv.FormatInt(bundle.RefreshExpiresAt, 10)),
	})
	return nil
}

// LoadProfile reads the mirrored profile, if any.
func (store *CookieTokenStore) LoadProfile(ctx context.Context) (UserProfile, bool, error) {
	values := store.cookieValues()
	encoded, ok := values[profileCookieName]
	if !ok || encoded == "" {
		return UserProfile{}, false, nil
	}
	decoded, decodeErr := base64.RawURLEncoding.DecodeString(encoded)
	if decodeErr != nil {
		return UserProfile{}, false, nil
	}
	var profile UserProfile
	if unmarshalErr := json.Unmarshal(decoded, &profile); unmarshalErr != nil {
		return UserProfile{}, false, nil
	}
	return profile, true, nil
}

// SaveProfile mirrors the profile as a base64 JSON cookie.
func (store *CookieTokenStore) SaveProfile(ctx context.Context, profile UserProfile) error {
	encoded, marshalErr := json.Marshal(profile)
	if marshalErr != nil {
		return fmt.Errorf("cookie_store.profile: %w", marshalErr)
	}
	store.jar.SetCookies(store.baseURL, []*http.Cookie{
		store.newCookie(profileCookieName, base64.RawURLEncoding.EncodeToString(encoded)),
	})
	return nil
}

// Clear drops every mirrored cookie together.
func (store *CookieTokenStore) Clear(ctx context.Context) error {
	expired := make([]*http.Cookie, 0, 5)
	for _, name := range []string{accessCookieName, refreshCookieName, accessExpiryCookieName, refreshExpiryCookieName, profileCookieName} {
		cookie := store.newCookie(name, "")
		cookie.MaxAge = -1
		expired = append(expired, cookie)
	}
	store.jar.SetCookies(store.baseURL, expired)
	return nil
}

func (store *CookieTokenStore) cookieValues() map[string]string {
	values := make(map[string]string)
	for _, cookie := range store.jar.Cookies(store.baseURL) {
		values[cookie.Name] = cookie.Value
	}
	return values
}

func (store *CookieTokenStore) newCookie(name string, value string) *http.Cookie {
	cookie := &http.Cookie{
		Name:  name,
		Value: value,
		Path:  "/",
	}
	if store.secure {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	return cookie
}
