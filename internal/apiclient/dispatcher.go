package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Request describes one logical API call. A descriptor is created per call
// and discarded after completion; the attempt counter and auth-retry flag
// are mutated in place as middlewares re-issue it.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	attempt     int
	authRetried bool
}

// Attempt returns the zero-based retry counter.
func (request *Request) Attempt() int {
	return request.attempt
}

// Response is the raw outcome of a dispatched request. Non-2xx statuses are
// carried here, not as errors; normalization happens at the client boundary.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Doer sends one request to completion.
type Doer func(ctx context.Context, request *Request) (*Response, error)

// Middleware wraps a Doer with a cross-cutting concern.
type Middleware func(next Doer) Doer

// Chain wraps base with middlewares; the first middleware is outermost.
func Chain(base Doer, middlewares ...Middleware) Doer {
	wrapped := base
	for index := len(middlewares) - 1; index >= 0; index-- {
		wrapped = middlewares[index](wrapped)
	}
	return wrapped
}

// newHTTPTransport returns the base Doer that performs the actual round trip.
// Transport failures are classified into the normalized taxonomy here so no
// other layer ever inspects *url.Error or friends.
func newHTTPTransport(httpClient *http.Client, baseURL string) Doer {
	trimmedBase := strings.TrimSuffix(baseURL, "/")
	return func(ctx context.Context, request *Request) (*Response, error) {
		endpoint := trimmedBase + "/" + strings.TrimPrefix(request.Path, "/")
		if len(request.Query) > 0 {
			endpoint = endpoint + "?" + request.Query.Encode()
		}

		var bodyReader io.Reader
		if request.Body != nil {
			encoded, marshalErr := json.Marshal(request.Body)
			if marshalErr != nil {
				return nil, &APIError{Kind: KindMalformed, Message: fmt.Sprintf("encode request body: %v", marshalErr)}
			}
			bodyReader = bytes.NewReader(encoded)
		}

		httpRequest, buildErr := http.NewRequestWithContext(ctx, request.Method, endpoint, bodyReader)
		if buildErr != nil {
			return nil, &APIError{Kind: KindMalformed, Message: fmt.Sprintf("build request: %v", buildErr)}
		}
		for name, values := range request.Header {
			for _, value := range values {
				httpRequest.Header.Add(name, value)
			}
		}
		httpRequest.Header.Set("Accept", "application/json")
		if request.Body != nil {
			httpRequest.Header.Set("Content-Type", "application/json")
		}

		httpResponse, doErr := httpClient.Do(httpRequest)
		if doErr != nil {
			return nil, classifyTransportError(ctx, doErr)
		}
		defer func() { _ = httpResponse.Body.Close() }()

		payload, readErr := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseSize))
		if readErr != nil {
			return nil, classifyTransportError(ctx, readErr)
		}
		return &Response{
			StatusCode: httpResponse.StatusCode,
			Header:     httpResponse.Header,
			Body:       payload,
		}, nil
	}
}

// withBearerAuth attaches the current access token as a bearer credential.
// The header is omitted entirely when no token is available so that
// unauthenticated calls such as login still succeed.
func withBearerAuth(tokens *TokenManager) Middleware {
	return func(next Doer) Doer {
		return func(ctx context.Context, request *Request) (*Response, error) {
			accessToken, hasToken := tokens.GetAccessToken(ctx)
			if hasToken {
				if request.Header == nil {
					request.Header = make(http.Header)
				}
				request.Header.Set("Authorization", "Bearer "+accessToken)
			} else if request.Header != nil {
				request.Header.Del("Authorization")
			}
			return next(ctx, request)
		}
	}
}

// withRefreshOn401 performs the refresh-and-replay protocol. A 401 triggers
// exactly one refresh attempt per logical request; a failed refresh (or a 401
// that survives the replay) tears the session down.
func withRefreshOn401(refresher *Refresher, tokens *TokenManager, teardown func(ctx context.Context), logger *zap.Logger, metrics MetricsRecorder) Middleware {
	return func(next Doer) Doer {
		return func(ctx context.Context, request *Request) (*Response, error) {
			response, err := next(ctx, request)
			if err != nil || response.StatusCode != http.StatusUnauthorized {
				return response, err
			}
			if request.authRetried {
				teardown(ctx)
				return nil, &APIError{Kind: KindAuthExpired, Message: "session expired", StatusCode: http.StatusUnauthorized}
			}
			if _, hasRefresh := tokens.GetRefreshToken(ctx); !hasRefresh {
				// Unauthenticated call rejected by the backend; nothing to refresh.
				return response, nil
			}
			request.authRetried = true
			if refreshErr := refresher.Refresh(ctx); refreshErr != nil {
				logger.Warn("token refresh failed after 401",
					zap.String("code", "dispatch.refresh_failed"),
					zap.String("path", request.Path),
					zap.Error(refreshErr))
				teardown(ctx)
				return nil, &APIError{Kind: KindAuthExpired, Message: "session expired", StatusCode: http.StatusUnauthorized}
			}
			metrics.Increment(eventDispatchReplay)
			replayResponse, replayErr := next(ctx, request)
			if replayErr != nil {
				return nil, replayErr
			}
			if replayResponse.StatusCode == http.StatusUnauthorized {
				teardown(ctx)
				return nil, &APIError{Kind: KindAuthExpired, Message: "session expired", StatusCode: http.StatusUnauthorized}
			}
			return replayResponse, nil
		}
	}
}

// sleeper waits out a backoff delay, honoring cancellation.
type sleeper func(ctx context.Context, delay time.Duration) error

func defaultSleeper(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withRetry re-issues retryable failures with exponential backoff and jitter
// until the budget is exhausted. Cancelled requests and non-retryable client
// errors pass through untouched.
func withRetry(retryConfig RetryConfig, sleep sleeper, logger *zap.Logger, metrics MetricsRecorder) Middleware {
	if sleep == nil {
		sleep = defaultSleeper
	}
	return func(next Doer) Doer {
		return func(ctx context.Context, request *Request) (*Response, error) {
			for {
				response, err := next(ctx, request)
				if !shouldRetry(response, err) {
					return response, err
				}
				if request.attempt >= retryConfig.MaxRetries {
					return response, err
				}
				delay := backoffDelay(retryConfig, request.attempt)
				request.attempt++
				logger.Debug("retrying request",
					zap.String("method", request.Method),
					zap.String("path", request.Path),
					zap.Int("attempt", request.attempt),
					zap.Duration("backoff", delay))
				metrics.Increment(eventDispatchRetry)
				if sleepErr := sleep(ctx, delay); sleepErr != nil {
					return nil, classifyTransportError(ctx, sleepErr)
				}
			}
		}
	}
}

func shouldRetry(response *Response, err error) bool {
	if err != nil {
		apiError, ok := AsAPIError(err)
		return ok && apiError.Retryable()
	}
	return retryableStatuses[response.StatusCode]
}

// backoffDelay computes min(base * 2^attempt + jitter, max).
func backoffDelay(retryConfig RetryConfig, attempt int) time.Duration {
	delay := retryConfig.BackoffBase << attempt
	if retryConfig.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(retryConfig.MaxJitter)))
	}
	if delay > retryConfig.MaxBackoff {
		delay = retryConfig.MaxBackoff
	}
	return delay
}

// withLogging records the terminal outcome of each dispatched request.
func withLogging(logger *zap.Logger) Middleware {
	return func(next Doer) Doer {
		return func(ctx context.Context, request *Request) (*Response, error) {
			startTime := time.Now()
			response, err := next(ctx, request)
			duration := time.Since(startTime)
			if err != nil {
				logger.Warn("request failed",
					zap.String("method", request.Method),
					zap.String("path", request.Path),
					zap.Int("attempts", request.attempt+1),
					zap.Duration("elapsed", duration),
					zap.Error(err))
				return response, err
			}
			logger.Info("request",
				zap.String("method", request.Method),
				zap.String("path", request.Path),
				zap.Int("status", response.StatusCode),
				zap.Int("attempts", request.attempt+1),
				zap.Duration("elapsed", duration))
			return response, err
		}
	}
}
