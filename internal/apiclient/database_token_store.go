package apiclient

import (
	"context"
	"encoding/json"
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

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("credential_store.unsupported_dialect")

	errEmptyCacheURL      = errors.New("credential_store.empty_cache_url")
	errCacheNoScheme      = errors.New("credential_store.unsupported_no_scheme")
	errSQLiteEmptyPath    = errors.New("credential_store.sqlite.empty_path")
	errSQLiteInvalidURL   = errors.New("credential_store.sqlite.invalid_url")
	errCorruptCacheRecord = errors.New("credential_store.corrupt_record")
)

const (
	credentialKeyBundle  = "token_bundle"
	credentialKeyProfile = "user_profile"
)

// DatabaseTokenStore is the durable fast store for CLI runs: a small
// key-value credential cache persisted through GORM. It plays the role a
// browser's local storage plays for the dashboard.
type DatabaseTokenStore struct {
	db          *gorm.DB
	driverLabel string
}

type credentialRecord struct {
	Key           string `gorm:"column:key;primaryKey"`
	Value         string `gorm:"column:value;not null"`
	UpdatedAtUnix int64  `gorm:"column:updated_at_unix;not null"`
}

func (credentialRecord) TableName() string {
	return "credentials"
}

// Driver exposes the selected database driver label.
func (store *DatabaseTokenStore) Driver() string {
	return store.driverLabel
}

// NewDatabaseTokenStore opens (and migrates) a credential cache at cacheURL.
// Supported schemes: sqlite:// and postgres://.
func NewDatabaseTokenStore(ctx context.Context, cacheURL string) (*DatabaseTokenStore, error) {
	if strings.TrimSpace(cacheURL) == "" {
		return nil, fmt.Errorf("credential_store.open: %w", errEmptyCacheURL)
	}
	dialector, driverLabel, err := resolveCacheDialector(cacheURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("credential_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&credentialRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("credential_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseTokenStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// LoadBundle reads the persisted token bundle, if present.
func (store *DatabaseTokenStore) LoadBundle(ctx context.Context) (TokenBundle, bool, error) {
	var bundle TokenBundle
	found, err := store.loadJSON(ctx, credentialKeyBundle, &bundle)
	return bundle, found, err
}

// SaveBundle writes the token bundle.
func (store *DatabaseTokenStore) SaveBundle(ctx context.Context, bundle TokenBundle) error {
	return store.saveJSON(ctx, credentialKeyBundle, bundle)
}

// LoadProfile reads the cached user profile, if present.
func (store *DatabaseTokenStore) LoadProfile(ctx context.Context) (UserProfile, bool, error) {
	var profile UserProfile
	found, err := store.loadJSON(ctx, credentialKeyProfile, &profile)
	return profile, found, err
}

// SaveProfile writes the cached user profile.
func (store *DatabaseTokenStore) SaveProfile(ctx context.Context, profile UserProfile) error {
	return store.saveJSON(ctx, credentialKeyProfile, profile)
}

// Clear removes the bundle and profile together.
func (store *DatabaseTokenStore) Clear(ctx context.Context) error {
	result := store.db.WithContext(ctx).
		Where("key IN ?", []string{credentialKeyBundle, credentialKeyProfile}).
		Delete(&credentialRecord{})
	if result.Error != nil {
		return fmt.Errorf("credential_store.clear.%s: %w", store.driverLabel, result.Error)
	}
	return nil
}

func (store *DatabaseTokenStore) loadJSON(ctx context.Context, key string, out any) (bool, error) {
	var record credentialRecord
	err := store.db.WithContext(ctx).Where("key = ?", key).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("credential_store.load.%s: %w", store.driverLabel, err)
	}
	if unmarshalErr := json.Unmarshal([]byte(record.Value), out); unmarshalErr != nil {
		return false, fmt.Errorf("credential_store.load.%s: %w", store.driverLabel, errCorruptCacheRecord)
	}
	return true, nil
}

func (store *DatabaseTokenStore) saveJSON(ctx context.Context, key string, value any) error {
	encoded, marshalErr := json.Marshal(value)
	if marshalErr != nil {
		return fmt.Errorf("credential_store.save.%s: %w", store.driverLabel, marshalErr)
	}
	record := credentialRecord{
		Key:           key,
		Value:         string(encoded),
		UpdatedAtUnix: time.Now().UTC().Unix(),
	}
	result := store.db.WithContext(ctx).Save(&record)
	if result.Error != nil {
		return fmt.Errorf("credential_store.save.%s: %w", store.driverLabel, result.Error)
	}
	return nil
}

func resolveCacheDialector(cacheURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(cacheURL)
	if err != nil {
		return nil, "", fmt.Errorf("credential_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("credential_store.dialect: %w", errCacheNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(cacheURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteCacheDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("credential_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("credential_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteCacheDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
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
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
