package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a normalized request failure.
type ErrorKind string

// Error kinds surfaced by the client. Callers never see transport-specific
// error types; every failure is collapsed into an APIError carrying one of
// these kinds.
const (
	KindNetwork     ErrorKind = "network"
	KindServer      ErrorKind = "server"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindClient      ErrorKind = "client"
	KindAuthExpired ErrorKind = "auth_expired"
	KindCancelled   ErrorKind = "cancelled"
	KindMalformed   ErrorKind = "malformed_response"
)

// APIError is the single error shape returned by the client.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Code       string
}

// Error renders the normalized failure as text.
func (apiError *APIError) Error() string {
	if apiError.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", apiError.Kind, apiError.StatusCode, apiError.Message)
	}
	return fmt.Sprintf("%s: %s", apiError.Kind, apiError.Message)
}

// Retryable reports whether the failure is eligible for another attempt.
func (apiError *APIError) Retryable() bool {
	switch apiError.Kind {
	case KindNetwork, KindTimeout, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// AsAPIError unwraps err into an APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError, true
	}
	return nil, false
}

// retryableStatuses is the fixed set of HTTP statuses the dispatcher retries.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func kindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusRequestTimeout:
		return KindTimeout
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// serverErrorBody is the error envelope Copay backends return on failures.
type serverErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// errorFromResponse normalizes a non-2xx response into an APIError.
func errorFromResponse(response *Response) *APIError {
	normalized := &APIError{
		Kind:       kindForStatus(response.StatusCode),
		Message:    http.StatusText(response.StatusCode),
		StatusCode: response.StatusCode,
	}
	var body serverErrorBody
	if unmarshalErr := json.Unmarshal(response.Body, &body); unmarshalErr == nil {
		if body.Message != "" {
			normalized.Message = body.Message
		}
		switch {
		case body.Code != "":
			normalized.Code = body.Code
		case body.Error != "":
			normalized.Code = body.Error
		}
	}
	return normalized
}

// classifyTransportError converts a failed round trip into an APIError.
// Caller-driven cancellation is kept distinguishable from timeouts so the
// dispatcher never retries an abandoned request.
func classifyTransportError(ctx context.Context, err error) *APIError {
	if ctx.Err() == context.Canceled || errors.Is(err, context.Canceled) {
		return &APIError{Kind: KindCancelled, Message: "request cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: "request timed out"}
	}
	return &APIError{Kind: KindNetwork, Message: err.Error()}
}
