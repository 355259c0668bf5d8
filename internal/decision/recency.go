package decision

import (
	"sync"
	"time"
)

// recencySet remembers recently bought pools for cooldown suppression.
// Bounded two ways: entries older than maxAge are evicted lazily, and
// inserts past maxSize evict the oldest entry. Safe for concurrent use.
type recencySet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	maxAge  time.Duration
	maxSize int
	now     func() time.Time
}

func newRecencySet(maxAge time.Duration, maxSize int) *recencySet {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &recencySet{
		entries: make(map[string]time.Time),
		maxAge:  maxAge,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// checkAndAdd records the address unless it is already present within
// the cooldown window. Returns false when the address is still cooling
// down. Check and insert happen under one lock so concurrent events for
// the same pool cannot both pass.
func (s *recencySet) checkAndAdd(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if at, ok := s.entries[addr]; ok {
		if now.Sub(at) < s.maxAge {
			return false
		}
	}
	s.evictLocked(now)
	s.entries[addr] = now
	return true
}

// add records an address without the cooldown check, for warm starts.
func (s *recencySet) add(addr string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
	s.entries[addr] = at
}

func (s *recencySet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked drops expired entries, then the oldest entry if the set
// is still full. Caller holds the lock.
func (s *recencySet) evictLocked(now time.Time) {
	for addr, at := range s.entries {
		if now.Sub(at) >= s.maxAge {
			delete(s.entries, addr)
		}
	}
	if len(s.entries) < s.maxSize {
		return
	}
	var oldestAddr string
	var oldestAt time.Time
	for addr, at := range s.entries {
		if oldestAddr == "" || at.Before(oldestAt) {
			oldestAddr, oldestAt = addr, at
		}
	}
	delete(s.entries, oldestAddr)
}
