package apiclient

import (
	"context"
	"sync"
)

// MemoryTokenStore is an in-memory TokenStore intended for tests and
// short-lived tooling runs.
type MemoryTokenStore struct {
	mutex      sync.Mutex
	bundle     TokenBundle
	hasBundle  bool
	profile    UserProfile
	hasProfile bool
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// LoadBundle returns the stored bundle, if any.
func (store *MemoryTokenStore) LoadBundle(ctx context.Context) (TokenBundle, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.bundle, store.hasBundle, nil
}

// SaveBundle replaces the stored bundle.
func (store *MemoryTokenStore) SaveBundle(ctx context.Context, bundle TokenBundle) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.bundle = bundle
	store.hasBundle = true
	return nil
}

// LoadProfile returns the cached profile, if any.
func (store *MemoryTokenStore) LoadProfile(ctx context.Context) (UserProfile, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.profile, store.hasProfile, nil
}

// SaveProfile replaces the cached profile.
func (store *MemoryTokenStore) SaveProfile(ctx context.Context, profile UserProfile) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.profile = profile
	store.hasProfile = true
	return nil
}

// Clear removes the bundle and profile together.
func (store *MemoryTokenStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.bundle = TokenBundle{}
	store.hasBundle = false
	store.profile = UserProfile{}
	store.hasProfile = false
	return nil
}
