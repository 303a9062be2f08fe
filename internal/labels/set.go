package labels

import "strings"

// Set is an ordered collection of distinct labels. Membership is case-insensitive
// and the first spelling added is the one kept.
type Set struct {
	items []string
	seen  map[string]struct{}
	limit int
}

// NewSet returns an empty set holding at most limit labels; 0 means unbounded.
func NewSet(limit int) *Set {
	if limit < 0 {
		limit = 0
	}
	return &Set{seen: make(map[string]struct{}), limit: limit}
}

// Add appends label unless it is empty, already present or the set is full.
// It reports whether the label was added.
func (s *Set) Add(label string) bool {
	if label == "" || s.Full() {
		return false
	}
	key := strings.ToLower(label)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, label)
	return true
}

// Contains reports whether label is present, ignoring case.
func (s *Set) Contains(label string) bool {
	_, ok := s.seen[strings.ToLower(label)]
	return ok
}

// Full reports whether the limit has been reached.
func (s *Set) Full() bool {
	return s.limit > 0 && len(s.items) >= s.limit
}

// Len returns the number of labels.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns the labels in insertion order.
func (s *Set) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
