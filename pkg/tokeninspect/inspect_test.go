package tokeninspect

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

func mintToken(t *testing.T, signingKey []byte, issuer string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    "user-123",
		Phone:     "0788000000",
		FirstName: "Demo",
		LastName:  "User",
		Role:      "SUPER_ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	result, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return result
}

func TestNewValidatorRequiresSigningKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Issuer: "issuer"})
	if err == nil || !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
}

func TestNewValidatorRequiresIssuer(t *testing.T) {
	t.Parallel()

	_, err := New(Config{SigningKey: []byte("secret")})
	if err == nil || !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected missing issuer error, got %v", err)
	}
}

func TestExpiryOfJWT(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("secret-key"), "copay", now, time.Hour)

	expiry, err := ExpiryOf(tokenValue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expiry.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), expiry)
	}
}

func TestExpiryOfOpaqueToken(t *testing.T) {
	if _, err := ExpiryOf("tok1"); err == nil || !errors.Is(err, ErrNotAJWT) {
		t.Fatalf("expected not-a-jwt error, got %v", err)
	}
	if _, err := ExpiryOf("  "); err == nil || !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestValidateTokenSuccess(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator, err := New(Config{
		SigningKey: []byte("secret-key"),
		Issuer:     "copay",
		Clock:      fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenValue := mintToken(t, []byte("secret-key"), "copay", now, time.Minute)

	claims, validateErr := validator.ValidateToken(tokenValue)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" || claims.GetPhone() != "0788000000" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if claims.GetRole() != "SUPER_ADMIN" {
		t.Fatalf("unexpected role: %s", claims.GetRole())
	}
	if !claims.GetExpiresAt().Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestValidateTokenExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator, err := New(Config{
		SigningKey: []byte("secret-key"),
		Issuer:     "copay",
		Clock:      fixedClock{current: now.Add(2 * time.Minute)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenValue := mintToken(t, []byte("secret-key"), "copay", now, time.Minute)

	if _, validateErr := validator.ValidateToken(tokenValue); validateErr == nil || !errors.Is(validateErr, ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", validateErr)
	}
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator, err := New(Config{
		SigningKey: []byte("secret-key"),
		Issuer:     "copay",
		Clock:      fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenValue := mintToken(t, []byte("secret-key"), "someone-else", now, time.Minute)

	if _, validateErr := validator.ValidateToken(tokenValue); validateErr == nil || !errors.Is(validateErr, ErrInvalidIssuer) {
		t.Fatalf("expected invalid issuer error, got %v", validateErr)
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator, err := New(Config{
		SigningKey: []byte("secret-key"),
		Issuer:     "copay",
		Clock:      fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokenValue := mintToken(t, []byte("other-key"), "copay", now, time.Minute)

	if _, validateErr := validator.ValidateToken(tokenValue); validateErr == nil || !errors.Is(validateErr, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", validateErr)
	}
}
