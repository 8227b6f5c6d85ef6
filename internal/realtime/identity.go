package realtime

// IdentitySet is a fixed-capacity set of event identities used for
// deduplication. Insertion order is tracked so that Compact can evict the
// oldest half once the cap is exceeded, making the memory bound structural
// rather than a runtime heuristic. Perfect historical dedup is traded for
// bounded memory; redelivery windows are short relative to the cap.
//
// Not safe for concurrent use; the owning classifier serializes access.
type IdentitySet struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

// DefaultIdentityCap bounds dedup state per table subscription.
const DefaultIdentityCap = 1000

// NewIdentitySet returns a set holding at most capacity identities.
// Non-positive capacities fall back to DefaultIdentityCap.
func NewIdentitySet(capacity int) *IdentitySet {
	if capacity <= 0 {
		capacity = DefaultIdentityCap
	}
	return &IdentitySet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Has reports whether the identity was already recorded.
func (s *IdentitySet) Has(identity string) bool {
	_, ok := s.seen[identity]
	return ok
}

// Add records an identity. Adding an already-present identity is a no-op.
func (s *IdentitySet) Add(identity string) {
	if s.Has(identity) {
		return
	}
	s.seen[identity] = struct{}{}
	s.order = append(s.order, identity)
}

// Compact evicts the oldest half of entries if the set has grown past its
// capacity. Called once per batch, not per event.
func (s *IdentitySet) Compact() {
	if len(s.order) <= s.capacity {
		return
	}
	cut := len(s.order) - s.capacity/2
	for _, identity := range s.order[:cut] {
		delete(s.seen, identity)
	}
	s.order = append(s.order[:0], s.order[cut:]...)
}

// Len returns the number of tracked identities.
func (s *IdentitySet) Len() int {
	return len(s.order)
}

// Clear discards all entries.
func (s *IdentitySet) Clear() {
	s.order = s.order[:0]
	s.seen = make(map[string]struct{}, s.capacity)
}
