package dashboard

import (
	"sync"

	"github.com/sithafal/sithafal/internal/app"
)

// sessionStore maps session tokens to their application state. States are
// created lazily on first use and closed when the session ends.
type sessionStore struct {
	mu      sync.Mutex
	states  map[string]*app.State
	newFn   func() (*app.State, error)
	onOpen  func()
	onClose func()
}

func newSessionStore(newFn func() (*app.State, error)) *sessionStore {
	return &sessionStore{
		states:  make(map[string]*app.State),
		newFn:   newFn,
		onOpen:  func() {},
		onClose: func() {},
	}
}

// get returns the state for token, creating it if needed.
func (s *sessionStore) get(token string) (*app.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[token]; ok {
		return st, nil
	}
	st, err := s.newFn()
	if err != nil {
		return nil, err
	}
	s.states[token] = st
	s.onOpen()
	return st, nil
}

// drop closes and forgets the state of token.
func (s *sessionStore) drop(token string) {
	s.mu.Lock()
	st, ok := s.states[token]
	delete(s.states, token)
	s.mu.Unlock()
	if ok {
		st.Close()
		s.onClose()
	}
}

// each calls fn for a snapshot of the live states.
func (s *sessionStore) each(fn func(*app.State)) {
	s.mu.Lock()
	states := make([]*app.State, 0, len(s.states))
	for _, st := range s.states {
		states = append(states, st)
	}
	s.mu.Unlock()
	for _, st := range states {
		fn(st)
	}
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// closeAll closes every state.
func (s *sessionStore) closeAll() {
	s.mu.Lock()
	states := s.states
	s.states = make(map[string]*app.State)
	s.mu.Unlock()
	for _, st := range states {
		st.Close()
		s.onClose()
	}
}
