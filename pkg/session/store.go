package session

import (
	"sort"
	"sync"
	"time"
)

// cleanupInterval is how often Get() triggers lazy eviction of expired entries.
const cleanupInterval = 100

type entry[T any] struct {
	value      *T
	lastAccess time.Time
}

// Store is a typed, thread-safe session store. Each session ID maps to one
// instance of T, created on first access via the newFn factory.
type Store[T any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[T]
	ttl      time.Duration
	newFn    func(id string) *T
	onEvict  func(id string, v *T)
	now      func() time.Time
	getCalls int
}

// NewStore creates a Store that evicts sessions inactive longer than ttl.
// A non-positive ttl keeps sessions until they are deleted.
func NewStore[T any](ttl time.Duration, newFn func(id string) *T) *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		newFn:   newFn,
		now:     time.Now,
	}
}

// OnEvict registers a callback run for every session removed by TTL expiry or
// Delete. It runs with the store unlocked.
func (s *Store[T]) OnEvict(fn func(id string, v *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Get returns the state for the given session, creating it if needed.
// Each call refreshes the session's last-access timestamp.
func (s *Store[T]) Get(id string) *T {
	s.mu.Lock()
	var evicted map[string]*T
	s.getCalls++
	if s.getCalls%cleanupInterval == 0 {
		evicted = s.cleanupLocked()
	}

	e, ok := s.entries[id]
	if !ok {
		e = &entry[T]{value: s.newFn(id)}
		s.entries[id] = e
	}
	e.lastAccess = s.now()
	v := e.value
	s.mu.Unlock()

	s.evict(evicted)
	return v
}

// Lookup returns an existing session without creating one. It refreshes the
// last-access timestamp.
func (s *Store[T]) Lookup(id string) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.lastAccess = s.now()
	return e.value, true
}

// Delete removes a session.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if ok {
		s.evict(map[string]*T{id: e.value})
	}
	return ok
}

// Cleanup evicts all sessions that have been inactive longer than the TTL.
func (s *Store[T]) Cleanup() int {
	s.mu.Lock()
	evicted := s.cleanupLocked()
	s.mu.Unlock()

	s.evict(evicted)
	return len(evicted)
}

func (s *Store[T]) cleanupLocked() map[string]*T {
	if s.ttl <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.ttl)
	var evicted map[string]*T
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			if evicted == nil {
				evicted = make(map[string]*T)
			}
			evicted[id] = e.value
			delete(s.entries, id)
		}
	}
	return evicted
}

func (s *Store[T]) evict(evicted map[string]*T) {
	if len(evicted) == 0 {
		return
	}
	s.mu.Lock()
	fn := s.onEvict
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for id, v := range evicted {
		fn(id, v)
	}
}

// IDs returns the live session IDs, sorted.
func (s *Store[T]) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of active sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
