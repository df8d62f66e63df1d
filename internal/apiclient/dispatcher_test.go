package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func instantSleeper(ctx context.Context, delay time.Duration) error {
	return nil
}

func newTestClient(t *testing.T, serverURL string, clock Clock, onExpired func()) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:          serverURL,
		Logger:           zaptest.NewLogger(t),
		Clock:            clock,
		OnSessionExpired: onExpired,
		retrySleeper:     instantSleeper,
	})
	if err != nil {
		t.Fatalf("client construction error: %v", err)
	}
	return client
}

type callCounter struct {
	mutex sync.Mutex
	count int
}

func (counter *callCounter) next() int {
	counter.mutex.Lock()
	defer counter.mutex.Unlock()
	counter.count++
	return counter.count
}

func (counter *callCounter) total() int {
	counter.mutex.Lock()
	defer counter.mutex.Unlock()
	return counter.count
}

func TestRetryEventualSuccessAfterServerErrors(t *testing.T) {
	var calls callCounter
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if calls.next() <= 3 {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"data": {"id": "org-1"}}`))
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)

	var entity entityPayload
	if err := client.GetEntity(context.Background(), "/admin/organizations/org-1", nil, &entity); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if entity.ID != "org-1" {
		t.Fatalf("unexpected entity: %#v", entity)
	}
	if calls.total() != 4 {
		t.Fatalf("expected exactly 4 network calls, got %d", calls.total())
	}
	if retries := client.Metrics().Count("dispatch.retry"); retries != 3 {
		t.Fatalf("expected 3 recorded retries, got %d", retries)
	}
}

func TestRetryBudgetExhaustedReturnsServerError(t *testing.T) {
	var calls callCounter
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.next()
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)

	err := client.GetEntity(context.Background(), "/admin/organizations", nil, nil)
	apiError, ok := AsAPIError(err)
	if !ok || apiError.Kind != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if apiError.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", apiError.StatusCode)
	}
	if calls.total() != 4 {
		t.Fatalf("expected exactly 4 network calls, got %d", calls.total())
	}
}

func TestClientErrorNeverRetried(t *testing.T) {
	var calls callCounter
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.next()
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		_, _ = writer.Write([]byte(`{"message": "bad filter", "error": "invalid_filter"}`))
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)

	err := client.GetEntity(context.Background(), "/admin/organizations", nil, nil)
	apiError, ok := AsAPIError(err)
	if !ok || apiError.Kind != KindClient {
		t.Fatalf("expected client error, got %v", err)
	}
	if apiError.Message != "bad filter" || apiError.Code != "invalid_filter" {
		t.Fatalf("expected normalized backend envelope, got %#v", apiError)
	}
	if calls.total() != 1 {
		t.Fatalf("expected exactly 1 network call, got %d", calls.total())
	}
}

func TestRefreshThenReplayOn401(t *testing.T) {
	var originCalls callCounter
	var refreshCalls callCounter
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(writer http.ResponseWriter, request *http.Request) {
		refreshCalls.next()
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if decodeErr := json.NewDecoder(request.Body).Decode(&body); decodeErr != nil || body.RefreshToken != "refresh-1" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"accessToken": "fresh-access", "refreshToken": "refresh-2", "expiresIn": 3600}`))
	})
	mux.HandleFunc("/admin/organizations/org-1", func(writer http.ResponseWriter, request *http.Request) {
		originCalls.next()
		if request.Header.Get("Authorization") != "Bearer fresh-access" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"data": {"id": "org-1"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)
	ctx := context.Background()
	if err := client.Tokens().SetTokens(ctx, "stale-access", "refresh-1", time.Hour, 24*time.Hour); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}

	var entity entityPayload
	if err := client.GetEntity(ctx, "/admin/organizations/org-1", nil, &entity); err != nil {
		t.Fatalf("expected refreshed replay to succeed, got %v", err)
	}
	if entity.ID != "org-1" {
		t.Fatalf("unexpected entity: %#v", entity)
	}
	if originCalls.total() != 2 {
		t.Fatalf("expected 2 calls to the origin endpoint, got %d", originCalls.total())
	}
	if refreshCalls.total() != 1 {
		t.Fatalf("expected 1 refresh call, got %d", refreshCalls.total())
	}
	accessToken, ok := client.Tokens().GetAccessToken(ctx)
	if !ok || accessToken != "fresh-access" {
		t.Fatalf("expected rotated access token, got %q (ok=%v)", accessToken, ok)
	}
}

func TestFailedRefreshTearsDownSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/admin/tenants", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	expired := false
	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, func() { expired = true })
	ctx := context.Background()
	if err := client.Tokens().SetTokens(ctx, "stale-access", "refresh-1", time.Hour, 24*time.Hour); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}

	err := client.GetEntity(ctx, "/admin/tenants", nil, nil)
	apiError, ok := AsAPIError(err)
	if !ok || apiError.Kind != KindAuthExpired {
		t.Fatalf("expected auth expired error, got %v", err)
	}
	if !expired {
		t.Fatalf("expected session-expired callback to fire")
	}
	if _, hasToken := client.Tokens().GetAccessToken(ctx); hasToken {
		t.Fatalf("expected tokens cleared after teardown")
	}
	if client.Metrics().Count("session.teardown") != 1 {
		t.Fatalf("expected one recorded teardown")
	}
}

func TestUnauthenticated401SurfacesAsClientError(t *testing.T) {
	var refreshCalls callCounter
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(writer http.ResponseWriter, request *http.Request) {
		refreshCalls.next()
		writer.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/login", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusUnauthorized)
		_, _ = writer.Write([]byte(`{"message": "invalid credentials", "error": "auth.invalid_pin"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)

	_, err := client.Login(context.Background(), "0788000000", "0000")
	apiError, ok := AsAPIError(err)
	if !ok || apiError.Kind != KindClient || apiError.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected plain 401 client error, got %v", err)
	}
	if refreshCalls.total() != 0 {
		t.Fatalf("expected no refresh attempt without a refresh token, got %d", refreshCalls.total())
	}
}

func TestCancelledRequestNotRetried(t *testing.T) {
	var calls callCounter
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls.next()
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.GetEntity(ctx, "/admin/organizations", nil, nil)
	apiError, ok := AsAPIError(err)
	if !ok || apiError.Kind != KindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if calls.total() != 0 {
		t.Fatalf("expected no network calls for a pre-cancelled request, got %d", calls.total())
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	retryConfig := RetryConfig{
		MaxRetries:  10,
		BackoffBase: time.Second,
		MaxBackoff:  10 * time.Second,
		MaxJitter:   time.Second,
	}
	for attempt := 0; attempt < 10; attempt++ {
		delay := backoffDelay(retryConfig, attempt)
		if delay > retryConfig.MaxBackoff {
			t.Fatalf("attempt %d: delay %v exceeds cap", attempt, delay)
		}
		if delay < retryConfig.BackoffBase {
			t.Fatalf("attempt %d: delay %v below base", attempt, delay)
		}
	}
}

func TestBearerHeaderOmittedWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if _, present := request.Header["Authorization"]; present {
			t.Errorf("expected no Authorization header, got %q", request.Header.Get("Authorization"))
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	client := newTestClient(t, server.URL, clock, nil)
	if err := client.GetEntity(context.Background(), "/health", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
