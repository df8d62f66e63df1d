package stubserver

import (
	"context"
	"time"
)

// AdminUser is an administrator account served by the stub backend.
type AdminUser struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// UserDirectory authenticates and resolves admin users.
type UserDirectory interface {
	Authenticate(ctx context.Context, phone string, pin string) (AdminUser, error)
	GetByID(ctx context.Context, userID string) (AdminUser, error)
}

// RefreshTokenStore manages rotating opaque refresh tokens.
type RefreshTokenStore interface {
	Issue(ctx context.Context, userID string, expiresAt time.Time, previousTokenID string) (tokenID string, secret string, err error)
	Validate(ctx context.Context, secret string) (userID string, tokenID string, expiresAt time.Time, err error)
	Revoke(ctx context.Context, tokenID string) error
}
