package stubserver

import "errors"

var (
	// ErrInvalidCredentials indicates the phone or PIN did not match a known admin.
	ErrInvalidCredentials = errors.New("directory.invalid_credentials")
	// ErrUserNotFound indicates no admin user exists for the identifier.
	ErrUserNotFound = errors.New("directory.user_not_found")

	// ErrTokenNotFound indicates no refresh token matched the presented secret or identifier.
	ErrTokenNotFound = errors.New("refresh_store.not_found")
	// ErrTokenRevoked indicates the refresh token was already revoked.
	ErrTokenRevoked = errors.New("refresh_store.revoked")
	// ErrTokenExpired indicates the refresh token passed its expiry.
	ErrTokenExpired = errors.New("refresh_store.expired")
	// ErrEmptyTokenSecret indicates the presented opaque secret was blank.
	ErrEmptyTokenSecret = errors.New("refresh_store.empty_secret")
	// ErrUnsupportedDialect indicates no GORM dialector is available for the URL scheme.
	ErrUnsupportedDialect = errors.New("refresh_store.unsupported_dialect")

	// ErrTooManyAttempts indicates the login throttle rejected the attempt.
	ErrTooManyAttempts = errors.New("throttle.too_many_attempts")
)
