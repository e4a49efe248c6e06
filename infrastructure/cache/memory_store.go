package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-qgen/internal/ports"
)

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process ports.CacheStore. Expired entries are
// dropped lazily on access.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]entry), now: time.Now}
}

// Get implements ports.CacheStore.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expires.Equal(e.expires) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements ports.CacheStore.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		e.expires = s.now().Add(expiration)
	}
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

// Delete implements ports.CacheStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ ports.CacheStore = (*MemoryStore)(nil)
