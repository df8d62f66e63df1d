package stubserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/copayhq/copayctl/pkg/tokeninspect"
)

// MintAccessToken creates a signed HS256 access token for the admin user.
func MintAccessToken(user AdminUser, issuer string, signingKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokeninspect.Claims{
		UserID:    user.ID,
		Phone:     user.Phone,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	return signed, expiresAt, err
}
