package stubserver

import (
	"fmt"
	"sync"
	"time"
)

// LoginThrottle limits login attempts per phone within a sliding window.
type LoginThrottle struct {
	mutex    sync.Mutex
	attempts map[string][]time.Time
	window   time.Duration
	limit    int
	now      func() time.Time
}

// NewLoginThrottle constructs a throttle allowing limit attempts per window.
func NewLoginThrottle(window time.Duration, limit int) *LoginThrottle {
	return &LoginThrottle{
		attempts: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

// Check records an attempt for the phone and rejects it when the window is full.
func (throttle *LoginThrottle) Check(phone string) error {
	throttle.mutex.Lock()
	defer throttle.mutex.Unlock()

	now := throttle.now()
	cutoff := now.Add(-throttle.window)
	recent := throttle.attempts[phone][:0]
	for _, attemptAt := range throttle.attempts[phone] {
		if attemptAt.After(cutoff) {
			recent = append(recent, attemptAt)
		}
	}
	if len(recent) >= throttle.limit {
		throttle.attempts[phone] = recent
		return fmt.Errorf("throttle.check: %w", ErrTooManyAttempts)
	}
	throttle.attempts[phone] = append(recent, now)
	return nil
}

// Reset clears the attempt history for the phone, e.g. after a successful login.
func (throttle *LoginThrottle) Reset(phone string) {
	throttle.mutex.Lock()
	defer throttle.mutex.Unlock()
	delete(throttle.attempts, phone)
}
