package dataset

import "sync"

// Store is a concurrency-safe holder of State for callers outside the
// dashboard's event loop, such as the CLI and the scheduler.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewStore returns a store holding NewState().
func NewStore() *Store {
	return &Store{
		state: NewState(),
		subs:  make(map[int]func(State)),
	}
}

// Dispatch applies ev and notifies subscribers with the new state.
func (s *Store) Dispatch(ev Event) {
	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	state := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every Dispatch. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
