package reconciler

import (
	"sort"
	"sync"

	"github.com/knsan189/imageLabeler/internal/metrics"
)

// InFlight is the set of candidate identities that are queued or running.
// A key is added before its task is enqueued and removed when the task
// finishes, so the same photo is never processed twice at once.
type InFlight struct {
	mu    sync.Mutex
	items map[string]struct{}
}

// NewInFlight returns an empty set.
func NewInFlight() *InFlight {
	return &InFlight{items: make(map[string]struct{})}
}

// TryAdd adds key and reports whether it was absent.
func (s *InFlight) TryAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}
	metrics.InFlightItems.Set(float64(len(s.items)))
	return true
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *InFlight) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	metrics.InFlightItems.Set(float64(len(s.items)))
}

// Contains reports whether key is in flight.
func (s *InFlight) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Len returns the number of keys in flight.
func (s *InFlight) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keys returns the keys in flight, sorted.
func (s *InFlight) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}
