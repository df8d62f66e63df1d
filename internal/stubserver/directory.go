package stubserver

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
)

// SeedUser pairs an admin account with its login PIN for directory seeding.
type SeedUser struct {
	User AdminUser
	Pin  string
}

type directoryEntry struct {
	user    AdminUser
	pinHash string
}

// MemoryDirectory is an in-memory UserDirectory seeded with fixture admins.
type MemoryDirectory struct {
	mutex   sync.Mutex
	byPhone map[string]*directoryEntry
	byID    map[string]*directoryEntry
}

// NewMemoryDirectory constructs a directory holding the given accounts.
func NewMemoryDirectory(seeds []SeedUser) *MemoryDirectory {
	directory := &MemoryDirectory{
		byPhone: make(map[string]*directoryEntry),
		byID:    make(map[string]*directoryEntry),
	}
	for _, seed := range seeds {
		entry := &directoryEntry{user: seed.User, pinHash: hashPin(seed.Pin)}
		directory.byPhone[seed.User.Phone] = entry
		directory.byID[seed.User.ID] = entry
	}
	return directory
}

// Authenticate verifies the phone/PIN pair and returns the matching admin.
func (directory *MemoryDirectory) Authenticate(ctx context.Context, phone string, pin string) (AdminUser, error) {
	directory.mutex.Lock()
	defer directory.mutex.Unlock()

	entry, ok := directory.byPhone[strings.TrimSpace(phone)]
	if !ok {
		return AdminUser{}, fmt.Errorf("directory.authenticate: %w", ErrInvalidCredentials)
	}
	presented := hashPin(pin)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(entry.pinHash)) != 1 {
		return AdminUser{}, fmt.Errorf("directory.authenticate: %w", ErrInvalidCredentials)
	}
	return entry.user, nil
}

// GetByID resolves an admin by identifier.
func (directory *MemoryDirectory) GetByID(ctx context.Context, userID string) (AdminUser, error) {
	directory.mutex.Lock()
	defer directory.mutex.Unlock()

	entry, ok := directory.byID[userID]
	if !ok {
		return AdminUser{}, fmt.Errorf("directory.get: %w", ErrUserNotFound)
	}
	return entry.user, nil
}
