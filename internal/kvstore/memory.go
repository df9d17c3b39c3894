package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store, used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	opts    Options
	now     func() time.Time

	// FailWith, when set, is returned by every operation.
	FailWith error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		opts:    opts,
		now:     time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if s.FailWith != nil {
		return "", unavailable("get", key, s.FailWith)
	}
	if err := ctx.Err(); err != nil {
		return "", unavailable("get", key, err)
	}

	s.mu.RLock()
	entry, ok := s.entries[s.opts.key(key)]
	now := s.now()
	s.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.FailWith != nil {
		return unavailable("set", key, s.FailWith)
	}
	if err := ctx.Err(); err != nil {
		return unavailable("set", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[s.opts.key(key)] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if s.FailWith != nil {
		return unavailable("delete", key, s.FailWith)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, s.opts.key(key))
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.FailWith != nil {
		return unavailable("ping", "", s.FailWith)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, entry := range s.entries {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}
