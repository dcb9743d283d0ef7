package mfa

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CooldownError reports a code dispatch rejected because the previous
// dispatch for the same target is still cooling down.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("code was recently sent; retry in %s", e.Remaining.Round(time.Second))
}

// CooldownStore tracks per-key dispatch cooldowns. Keys are namespaced
// by the coordinator ("enroll:<phone>", "challenge:<resolver>").
type CooldownStore interface {
	// Set arms (or re-arms) the cooldown for the key.
	Set(ctx context.Context, key string, ttl time.Duration) error
	// Remaining returns how long the key's cooldown still has to run,
	// or zero when no cooldown is active.
	Remaining(ctx context.Context, key string) (time.Duration, error)
	// Clear drops the key's cooldown.
	Clear(ctx context.Context, key string) error
}

// MemoryCooldownStore is an in-process CooldownStore.
type MemoryCooldownStore struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	now      func() time.Time
}

// NewMemoryCooldownStore creates an in-memory cooldown store.
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		deadline: make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithClock overrides the store's clock and returns the store. Tests use
// it to advance time without sleeping.
func (s *MemoryCooldownStore) WithClock(now func() time.Time) *MemoryCooldownStore {
	s.now = now
	return s
}

func (s *MemoryCooldownStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryCooldownStore) Remaining(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.deadline[key]
	if !ok {
		return 0, nil
	}
	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		delete(s.deadline, key)
		return 0, nil
	}
	return remaining, nil
}

func (s *MemoryCooldownStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadline, key)
	return nil
}

var _ CooldownStore = (*MemoryCooldownStore)(nil)
