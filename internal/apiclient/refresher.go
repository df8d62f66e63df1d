package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/copayhq/copayctl/pkg/tokeninspect"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors returned by the refresher.
var (
	ErrNoRefreshToken     = errors.New("refresher.no_refresh_token")
	ErrRefreshRejected    = errors.New("refresher.rejected")
	ErrRefreshMalformed   = errors.New("refresher.malformed_response")
	ErrRefreshUnreachable = errors.New("refresher.unreachable")
)

// RefreshState tracks the refresh protocol state machine.
type RefreshState int32

const (
	RefreshStateIdle RefreshState = iota
	RefreshStateRefreshing
	RefreshStateFailed
)

// String renders the state for logs.
func (state RefreshState) String() string {
	switch state {
	case RefreshStateRefreshing:
		return "refreshing"
	case RefreshStateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Refresher exchanges the stored refresh token for a new pair. It talks to
// the refresh endpoint with its own bare HTTP client, never through the
// dispatcher, so a refresh can never recurse into retry-and-refresh.
// Concurrent callers share a single in-flight refresh via singleflight.
type Refresher struct {
	httpClient      *http.Client
	endpoint        string
	tokens          *TokenManager
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	clock           Clock
	logger          *zap.Logger
	metrics         MetricsRecorder

	group singleflight.Group

	stateMutex sync.Mutex
	state      RefreshState
}

// NewRefresher builds a refresher for the given backend base URL.
func NewRefresher(httpClient *http.Client, baseURL string, tokens *TokenManager, configuration Config) *Refresher {
	return &Refresher{
		httpClient:      httpClient,
		endpoint:        joinEndpoint(baseURL, "/auth/refresh"),
		tokens:          tokens,
		accessTokenTTL:  configuration.AccessTokenTTL,
		refreshTokenTTL: configuration.RefreshTokenTTL,
		clock:           configuration.Clock,
		logger:          configuration.Logger,
		metrics:         NewCounterMetrics(),
	}
}

// SetMetrics replaces the metrics recorder (shared with the owning client).
func (refresher *Refresher) SetMetrics(metrics MetricsRecorder) {
	if metrics != nil {
		refresher.metrics = metrics
	}
}

// State returns the current protocol state.
func (refresher *Refresher) State() RefreshState {
	refresher.stateMutex.Lock()
	defer refresher.stateMutex.Unlock()
	return refresher.state
}

func (refresher *Refresher) setState(state RefreshState) {
	refresher.stateMutex.Lock()
	defer refresher.stateMutex.Unlock()
	refresher.state = state
}

// Refresh obtains a new token pair. Concurrent calls are deduplicated: all
// callers awaiting an in-flight refresh observe its single outcome. The
// refresher never retries internally; teardown is left to the caller.
func (refresher *Refresher) Refresh(ctx context.Context) error {
	_, err, _ := refresher.group.Do("refresh", func() (any, error) {
		return nil, refresher.refreshOnce(ctx)
	})
	return err
}

type refreshRequestBody struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponseBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (refresher *Refresher) refreshOnce(ctx context.Context) error {
	refresher.setState(RefreshStateRefreshing)

	refreshToken, hasToken := refresher.tokens.GetRefreshToken(ctx)
	if !hasToken {
		refresher.fail(nil)
		return fmt.Errorf("refresher.refresh: %w", ErrNoRefreshToken)
	}

	encoded, marshalErr := json.Marshal(refreshRequestBody{RefreshToken: refreshToken})
	if marshalErr != nil {
		refresher.fail(marshalErr)
		return fmt.Errorf("refresher.refresh: %w", marshalErr)
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, refresher.endpoint, bytes.NewReader(encoded))
	if buildErr != nil {
		refresher.fail(buildErr)
		return fmt.Errorf("refresher.refresh: %w", buildErr)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, doErr := refresher.httpClient.Do(httpRequest)
	if doErr != nil {
		refresher.fail(doErr)
		return fmt.Errorf("refresher.refresh: %w: %v", ErrRefreshUnreachable, doErr)
	}
	defer func() { _ = httpResponse.Body.Close() }()

	payload, readErr := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseSize))
	if readErr != nil {
		refresher.fail(readErr)
		return fmt.Errorf("refresher.refresh: %w: %v", ErrRefreshUnreachable, readErr)
	}
	if httpResponse.StatusCode != http.StatusOK {
		refresher.fail(nil)
		return fmt.Errorf("refresher.refresh: %w: status %d", ErrRefreshRejected, httpResponse.StatusCode)
	}

	var body refreshResponseBody
	if unmarshalErr := json.Unmarshal(payload, &body); unmarshalErr != nil {
		refresher.fail(unmarshalErr)
		return fmt.Errorf("refresher.refresh: %w", ErrRefreshMalformed)
	}
	if body.AccessToken == "" {
		refresher.fail(nil)
		return fmt.Errorf("refresher.refresh: %w", ErrRefreshMalformed)
	}
	newRefreshToken := body.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	accessTTL := resolveAccessTTL(body.AccessToken, body.ExpiresIn, refresher.accessTokenTTL, refresher.clock)
	if setErr := refresher.tokens.SetTokens(ctx, body.AccessToken, newRefreshToken, accessTTL, refresher.refreshTokenTTL); setErr != nil {
		refresher.fail(setErr)
		return fmt.Errorf("refresher.refresh: %w", setErr)
	}

	refresher.setState(RefreshStateIdle)
	refresher.metrics.Increment(eventRefreshSuccess)
	refresher.logger.Debug("token pair refreshed",
		zap.String("code", "refresher.success"),
		zap.Duration("access_ttl", accessTTL))
	return nil
}

func (refresher *Refresher) fail(err error) {
	refresher.setState(RefreshStateFailed)
	refresher.metrics.Increment(eventRefreshFailure)
	if err != nil {
		refresher.logger.Debug("token refresh failed",
			zap.String("code", "refresher.failure"),
			zap.Error(err))
	}
}

// RunAutoRefresh proactively refreshes the access token when it is within
// the configured threshold of expiry. Blocks until ctx is cancelled.
func (refresher *Refresher) RunAutoRefresh(ctx context.Context, interval time.Duration, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresher.refreshIfNearExpiry(ctx, threshold)
		}
	}
}

func (refresher *Refresher) refreshIfNearExpiry(ctx context.Context, threshold time.Duration) {
	bundle, found := refresher.tokens.Bundle(ctx)
	if !found || bundle.RefreshToken == "" {
		return
	}
	now := refresher.clock.Now()
	if !now.Before(bundle.RefreshExpiry()) {
		return
	}
	if bundle.AccessExpiry().Sub(now) > threshold {
		return
	}
	if err := refresher.Refresh(ctx); err != nil {
		refresher.logger.Warn("proactive refresh failed",
			zap.String("code", "refresher.proactive_failed"),
			zap.Error(err))
	}
}

// resolveAccessTTL picks the access token lifetime: the server-provided
// expiresIn wins, then a readable JWT exp claim, then the configured default.
func resolveAccessTTL(accessToken string, expiresInSeconds int64, fallback time.Duration, clock Clock) time.Duration {
	if expiresInSeconds > 0 {
		return time.Duration(expiresInSeconds) * time.Second
	}
	if expiry, err := tokeninspect.ExpiryOf(accessToken); err == nil {
		if ttl := expiry.Sub(clock.Now()); ttl > 0 {
			return ttl
		}
	}
	return fallback
}

func joinEndpoint(baseURL string, path string) string {
	trimmed := baseURL
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed + path
}
