package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process [Store]. Windows are anchored at
// first consumption and reset passively by time; expired entries are dropped
// on the next access to their key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryWindow

	// now is swapped out by tests to control window expiry.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Incr implements [Store].
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = &memoryWindow{expiresAt: now.Add(window)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, entry.expiresAt.Sub(now), nil
}
