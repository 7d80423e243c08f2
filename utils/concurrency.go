package utils

import (
	"sync"
	"time"
)

// ExpiringSet remembers keys for a fixed window. Keys are consumed at most once.
type ExpiringSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewExpiringSet creates a set whose keys live for ttl.
func NewExpiringSet(ttl time.Duration) *ExpiringSet {
	return &ExpiringSet{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add records key, refreshing its window if already present.
func (s *ExpiringSet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, at := range s.entries {
		if now.Sub(at) >= s.ttl {
			delete(s.entries, k)
		}
	}
	s.entries[key] = now
}

// Consume reports whether key was added within the window and forgets it.
func (s *ExpiringSet) Consume(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	return s.now().Sub(at) < s.ttl
}
