package tokeninspect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Sentinel errors exposed by the package.
var (
	ErrMissingSigningKey = errors.New("tokeninspect.missing_signing_key")
	ErrMissingIssuer     = errors.New("tokeninspect.missing_issuer")
	ErrMissingToken      = errors.New("tokeninspect.missing_token")
	ErrNotAJWT           = errors.New("tokeninspect.not_a_jwt")
	ErrNoExpiry          = errors.New("tokeninspect.no_expiry")
	ErrInvalidToken      = errors.New("tokeninspect.invalid_token")
	ErrInvalidIssuer     = errors.New("tokeninspect.invalid_issuer")
	ErrTokenExpired      = errors.New("tokeninspect.expired")
)

// Claims represent the payload embedded inside Copay access tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// GetUserID returns the user identifier from the token.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// GetPhone returns the phone number associated with the token.
func (claims *Claims) GetPhone() string {
	if claims == nil {
		return ""
	}
	return claims.Phone
}

// GetRole returns the role stored in the token.
func (claims *Claims) GetRole() string {
	if claims == nil {
		return ""
	}
	return claims.Role
}

// GetExpiresAt returns the expiry timestamp.
func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// ExpiryOf extracts the exp claim from a token without verifying its signature.
// Intended for clients that need to schedule refreshes around a token the server
// already vouched for. Returns ErrNotAJWT for opaque tokens.
func ExpiryOf(tokenString string) (time.Time, error) {
	if strings.TrimSpace(tokenString) == "" {
		return time.Time{}, fmt.Errorf("tokeninspect.expiry_of: %w", ErrMissingToken)
	}
	parser := jwt.NewParser()
	parsedToken, _, parseErr := parser.ParseUnverified(tokenString, &Claims{})
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("tokeninspect.expiry_of: %w", ErrNotAJWT)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("tokeninspect.expiry_of: %w", ErrNoExpiry)
	}
	return claims.ExpiresAt.Time, nil
}

// Config configures the Validator.
type Config struct {
	SigningKey []byte
	Issuer     string
	Clock      Clock
}

// Validator verifies Copay access tokens for services that trust the signing key.
type Validator struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("tokeninspect.new: %w", ErrMissingSigningKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("tokeninspect.new: %w", ErrMissingIssuer)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		clock:      clock,
	}, nil
}

// ValidateToken validates the provided JWT string and returns the parsed claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return validator.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrInvalidToken)
	}
	if claims.Issuer != validator.issuer {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrInvalidIssuer)
	}
	current := validator.clock.Now()
	if claims.ExpiresAt != nil && current.After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrTokenExpired)
	}
	if claims.NotBefore != nil && current.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("tokeninspect.validate_token: %w", ErrInvalidToken)
	}
	return claims, nil
}
