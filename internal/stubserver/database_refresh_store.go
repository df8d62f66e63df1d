package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseRefreshStore persists rotating refresh tokens through GORM.
type DatabaseRefreshStore struct {
	db          *gorm.DB
	driverLabel string
}

type refreshTokenRow struct {
	TokenID     string `gorm:"column:token_id;primaryKey"`
	UserID      string `gorm:"column:user_id;index;not null"`
	SecretHash  string `gorm:"column:secret_hash;uniqueIndex;not null"`
	ExpiresAtMs int64  `gorm:"column:expires_at_ms;not null"`
	RevokedAtMs int64  `gorm:"column:revoked_at_ms;not null;default:0"`
	RotatedFrom string `gorm:"column:rotated_from;not null;default:''"`
	IssuedAtMs  int64  `gorm:"column:issued_at_ms;not null"`
}

func (refreshTokenRow) TableName() string {
	return "refresh_tokens"
}

// NewDatabaseRefreshStore opens the database URL (sqlite:// or postgres://) and migrates the token table.
func NewDatabaseRefreshStore(ctx context.Context, databaseURL string) (*DatabaseRefreshStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("refresh_store.open: empty database URL")
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("refresh_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&refreshTokenRow{}); migrateErr != nil {
		return nil, fmt.Errorf("refresh_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseRefreshStore{db: gormDB, driverLabel: driverLabel}, nil
}

// Driver reports which database driver backs the store.
func (store *DatabaseRefreshStore) Driver() string {
	return store.driverLabel
}

// Issue inserts a new token row and returns its identifier and opaque secret.
func (store *DatabaseRefreshStore) Issue(ctx context.Context, userID string, expiresAt time.Time, previousTokenID string) (string, string, error) {
	tokenID, idErr := newTokenID()
	if idErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.%s: %w", store.driverLabel, idErr)
	}
	secret, secretHash, secretErr := newRefreshSecret()
	if secretErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.%s: %w", store.driverLabel, secretErr)
	}
	row := refreshTokenRow{
		TokenID:     tokenID,
		UserID:      userID,
		SecretHash:  secretHash,
		ExpiresAtMs: expiresAt.UTC().UnixMilli(),
		RotatedFrom: previousTokenID,
		IssuedAtMs:  time.Now().UTC().UnixMilli(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", "", fmt.Errorf("refresh_store.issue.%s: %w", store.driverLabel, err)
	}
	return tokenID, secret, nil
}

// Validate resolves a live token row by its opaque secret.
func (store *DatabaseRefreshStore) Validate(ctx context.Context, secret string) (string, string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.%s: %w", store.driverLabel, ErrEmptyTokenSecret)
	}
	var row refreshTokenRow
	err := store.db.WithContext(ctx).Where("secret_hash = ?", hashRefreshSecret(secret)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.%s: %w", store.driverLabel, ErrTokenNotFound)
		}
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.%s: %w", store.driverLabel, err)
	}
	if row.RevokedAtMs != 0 {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.%s: %w", store.driverLabel, ErrTokenRevoked)
	}
	expiresAt := time.UnixMilli(row.ExpiresAtMs).UTC()
	if expiresAt.Before(time.Now().UTC()) {
		return "", "", time.Time{}, fmt.Errorf("refresh_store.validate.%s: %w", store.driverLabel, ErrTokenExpired)
	}
	return row.UserID, row.TokenID, expiresAt, nil
}

// Revoke marks the token row as revoked; revoking twice is a no-op.
func (store *DatabaseRefreshStore) Revoke(ctx context.Context, tokenID string) error {
	result := store.db.WithContext(ctx).Model(&refreshTokenRow{}).
		Where("token_id = ? AND revoked_at_ms = 0", tokenID).
		Update("revoked_at_ms", time.Now().UTC().UnixMilli())
	if result.Error != nil {
		return fmt.Errorf("refresh_store.revoke.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		var row refreshTokenRow
		findErr := store.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&row).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("refresh_store.revoke.%s: %w", store.driverLabel, ErrTokenNotFound)
		}
		if findErr != nil {
			return fmt.Errorf("refresh_store.revoke.%s: %w", store.driverLabel, findErr)
		}
	}
	return nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("refresh_store.parse_url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn := sqlitePathFromURL(parsed)
		if dsn == "" {
			return nil, "", errors.New("refresh_store.sqlite: empty path")
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("refresh_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func sqlitePathFromURL(parsed *url.URL) string {
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return ""
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String()
}
