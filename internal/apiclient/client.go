package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// ErrInvalidBaseURL indicates the configured base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("client.invalid_base_url")

// Client is the resilient Copay admin API client. It is constructed once at
// process start and passed to all callers; there is no hidden global
// instance. Every call flows through the middleware chain (auth, refresh,
// retry, logging) and every failure surfaces as an *APIError.
type Client struct {
	configuration Config
	logger        *zap.Logger
	metrics       *CounterMetrics
	tokens        *TokenManager
	refresher     *Refresher
	dispatch      Doer
}

// New validates the configuration and assembles the middleware chain.
func New(configuration Config) (*Client, error) {
	configuration = configuration.withDefaults()

	parsed, parseErr := url.Parse(configuration.BaseURL)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client.new: %w", ErrInvalidBaseURL)
	}

	cookieStore := configuration.CookieStore
	if cookieStore == nil {
		created, cookieErr := NewCookieTokenStore(nil, configuration.BaseURL)
		if cookieErr != nil {
			return nil, fmt.Errorf("client.new: %w", cookieErr)
		}
		cookieStore = created
	}
	fastStore := configuration.FastStore
	if fastStore == nil {
		fastStore = NewMemoryTokenStore()
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: configuration.Timeout,
			Jar:     cookieStore.Jar(),
		}
	}

	tokens := NewTokenManager(fastStore, cookieStore, configuration.Clock, configuration.Logger)
	metrics := NewCounterMetrics()
	refresher := NewRefresher(httpClient, configuration.BaseURL, tokens, configuration)
	refresher.SetMetrics(metrics)

	client := &Client{
		configuration: configuration,
		logger:        configuration.Logger,
		metrics:       metrics,
		tokens:        tokens,
		refresher:     refresher,
	}
	client.dispatch = Chain(
		newHTTPTransport(httpClient, configuration.BaseURL),
		withLogging(configuration.Logger),
		withRetry(configuration.Retry, configuration.retrySleeper, configuration.Logger, metrics),
		withRefreshOn401(refresher, tokens, client.teardownSession, configuration.Logger, metrics),
		withBearerAuth(tokens),
	)
	return client, nil
}

// Tokens exposes the token manager.
func (client *Client) Tokens() *TokenManager {
	return client.tokens
}

// Metrics exposes the client's counters.
func (client *Client) Metrics() *CounterMetrics {
	return client.metrics
}

// RefreshState reports the refresh protocol state.
func (client *Client) RefreshState() RefreshState {
	return client.refresher.State()
}

// IsAuthenticated reports whether a usable session exists.
func (client *Client) IsAuthenticated(ctx context.Context) bool {
	return client.tokens.IsAuthenticated(ctx)
}

// RunAutoRefresh runs the proactive background refresh loop until ctx is
// cancelled.
func (client *Client) RunAutoRefresh(ctx context.Context) {
	client.refresher.RunAutoRefresh(ctx, client.configuration.RefreshInterval, client.configuration.RefreshThreshold)
}

// Do dispatches one request through the middleware chain and normalizes the
// terminal outcome: a 2xx yields the raw body, anything else an *APIError.
func (client *Client) Do(ctx context.Context, request *Request) ([]byte, error) {
	response, err := client.dispatch(ctx, request)
	if err != nil {
		if _, ok := AsAPIError(err); ok {
			return nil, err
		}
		return nil, &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	if response.StatusCode >= 400 {
		return nil, errorFromResponse(response)
	}
	return response.Body, nil
}

// GetEntity fetches a single entity, unwrapping the data envelope if present.
func (client *Client) GetEntity(ctx context.Context, path string, query url.Values, out any) error {
	return client.entityCall(ctx, http.MethodGet, path, query, nil, out)
}

// PostEntity creates an entity.
func (client *Client) PostEntity(ctx context.Context, path string, body any, out any) error {
	return client.entityCall(ctx, http.MethodPost, path, nil, body, out)
}

// PutEntity replaces an entity.
func (client *Client) PutEntity(ctx context.Context, path string, body any, out any) error {
	return client.entityCall(ctx, http.MethodPut, path, nil, body, out)
}

// PatchEntity partially updates an entity.
func (client *Client) PatchEntity(ctx context.Context, path string, body any, out any) error {
	return client.entityCall(ctx, http.MethodPatch, path, nil, body, out)
}

// DeleteEntity deletes an entity.
func (client *Client) DeleteEntity(ctx context.Context, path string, out any) error {
	return client.entityCall(ctx, http.MethodDelete, path, nil, nil, out)
}

// GetList fetches a paginated listing; the payload is decoded untouched so
// callers read data plus pagination metadata themselves.
func (client *Client) GetList(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := client.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if decodeErr := DecodeList(raw, out); decodeErr != nil {
		return &APIError{Kind: KindMalformed, Message: decodeErr.Error()}
	}
	return nil
}

func (client *Client) entityCall(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	raw, err := client.Do(ctx, &Request{Method: method, Path: path, Query: query, Body: body})
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if decodeErr := DecodeEntity(raw, out); decodeErr != nil {
		return &APIError{Kind: KindMalformed, Message: decodeErr.Error()}
	}
	return nil
}

type loginResponseBody struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *UserProfile `json:"user"`
}

// Login authenticates with phone and pin, stores the issued token pair and
// profile, and returns the profile. A response missing accessToken or user
// is a fatal malformed-response error.
func (client *Client) Login(ctx context.Context, phone string, pin string) (UserProfile, error) {
	raw, err := client.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"phone": phone, "pin": pin},
	})
	if err != nil {
		return UserProfile{}, err
	}

	var body loginResponseBody
	if decodeErr := DecodeEntity(raw, &body); decodeErr != nil {
		return UserProfile{}, &APIError{Kind: KindMalformed, Message: "login response is not valid JSON"}
	}
	if body.AccessToken == "" || body.User == nil {
		return UserProfile{}, &APIError{Kind: KindMalformed, Message: "login response missing accessToken or user"}
	}

	accessTTL := resolveAccessTTL(body.AccessToken, body.ExpiresIn, client.configuration.AccessTokenTTL, client.configuration.Clock)
	if setErr := client.tokens.SetTokens(ctx, body.AccessToken, body.RefreshToken, accessTTL, client.configuration.RefreshTokenTTL); setErr != nil {
		return UserProfile{}, &APIError{Kind: KindMalformed, Message: setErr.Error()}
	}
	if profileErr := client.tokens.SetProfile(ctx, *body.User); profileErr != nil {
		client.logger.Warn("failed to cache profile after login",
			zap.String("code", "client.login.profile_cache_failed"),
			zap.Error(profileErr))
	}
	return *body.User, nil
}

// Logout notifies the backend and clears local tokens. A backend failure is
// logged but never blocks client-side clearing.
func (client *Client) Logout(ctx context.Context) error {
	var body any
	if refreshToken, ok := client.tokens.GetRefreshToken(ctx); ok {
		body = map[string]string{"refreshToken": refreshToken}
	}
	if _, err := client.Do(ctx, &Request{Method: http.MethodPost, Path: "/auth/logout", Body: body}); err != nil {
		client.logger.Warn("logout call failed",
			zap.String("code", "client.logout.backend_failed"),
			zap.Error(err))
	}
	return client.tokens.ClearTokens(ctx)
}

// Me fetches the authenticated principal and opportunistically refreshes the
// cached profile.
func (client *Client) Me(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	if err := client.GetEntity(ctx, "/auth/me", nil, &profile); err != nil {
		return UserProfile{}, err
	}
	if cacheErr := client.tokens.SetProfile(ctx, profile); cacheErr != nil {
		client.logger.Warn("failed to cache profile",
			zap.String("code", "client.me.profile_cache_failed"),
			zap.Error(cacheErr))
	}
	return profile, nil
}

// teardownSession wipes local session state after a failed refresh and fires
// the configured callback. This is the only path that forces a global side
// effect.
func (client *Client) teardownSession(ctx context.Context) {
	client.metrics.Increment(eventSessionTeardown)
	if err := client.tokens.ClearTokens(ctx); err != nil {
		client.logger.Warn("session teardown failed to clear tokens",
			zap.String("code", "client.teardown.clear_failed"),
			zap.Error(err))
	}
	if client.configuration.OnSessionExpired != nil {
		client.configuration.OnSessionExpired()
	}
}
