package store

import (
	"sync"
)

// State is an immutable snapshot of a store.
// Values stored in a published snapshot must not be mutated; updates build new values.
type State map[string]any

// Listener is notified after every state change
type Listener func()

// Store is the contract consumed by the engine: read the current snapshot, observe changes.
// Actions are exposed as callable values inside the snapshot.
type Store interface {
	GetState() State
	Subscribe(l Listener) (unsubscribe func())
}

// MemoryStore is a copy-on-write in-memory Store
type MemoryStore struct {
	mu        sync.RWMutex
	state     State
	listeners []*subscription
}

type subscription struct {
	fn Listener
}

// NewMemoryStore creates a store holding a copy of initial
func NewMemoryStore(initial State) *MemoryStore {
	s := &MemoryStore{state: make(State, len(initial))}
	for k, v := range initial {
		s.state[k] = v
	}
	return s
}

// GetState returns the current snapshot
func (s *MemoryStore) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Get returns a single value of the current snapshot
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[key]
	return v, ok
}

// Set merges partial into a new snapshot and notifies listeners
func (s *MemoryStore) Set(partial State) {
	s.Update(func(State) State { return partial })
}

// Update computes a partial update from the current snapshot atomically,
// publishes the merged snapshot and notifies listeners outside the lock.
// A nil or empty partial publishes nothing.
func (s *MemoryStore) Update(fn func(prev State) State) {
	s.mu.Lock()
	partial := fn(s.state)
	if len(partial) == 0 {
		s.mu.Unlock()
		return
	}
	next := make(State, len(s.state)+len(partial))
	for k, v := range s.state {
		next[k] = v
	}
	for k, v := range partial {
		next[k] = v
	}
	s.state = next
	listeners := make([]*subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn()
	}
}

// Subscribe registers l; the returned func removes it and is safe to call more than once
func (s *MemoryStore) Subscribe(l Listener) func() {
	sub := &subscription{fn: l}

	s.mu.Lock()
	s.listeners = append(s.listeners, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.listeners {
				if existing == sub {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ListenerCount returns the number of active subscriptions
func (s *MemoryStore) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
