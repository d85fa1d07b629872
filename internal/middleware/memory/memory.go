// Package memory contains in-memory storage for cached responses.
package memory

import (
	"sync"
	"time"
)

type item struct {
	content   []byte
	expiresAt time.Time
}

// Storage is a TTL key/value storage. Expired items are dropped on access and by Set.
type Storage struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

// NewStorage ...
func NewStorage() *Storage {
	return &Storage{
		items: make(map[string]item),
		now:   time.Now,
	}
}

// Get returns nil when the key is missing or expired.
func (s *Storage) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.items[key]
	if !ok {
		return nil
	}

	if !s.now().Before(i.expiresAt) {
		delete(s.items, key)
		return nil
	}

	return i.content
}

// Set ...
func (s *Storage) Set(key string, content []byte, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.items {
		if !now.Before(v.expiresAt) {
			delete(s.items, k)
		}
	}

	s.items[key] = item{content: content, expiresAt: now.Add(duration)}
}
