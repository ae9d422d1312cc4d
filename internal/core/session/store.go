package session

import "sync"

// Store is a thread-safe map of open sessions keyed by ID.
//
// The RWMutex protects the map only. Each Session serializes its own
// state through its inbox.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// PutIfAbsent stores s unless its ID is taken, reporting whether it did.
func (st *Store) PutIfAbsent(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID]; ok {
		return false
	}
	st.sessions[s.ID] = s
	return true
}

// Delete removes a session and shuts down its goroutine. It reports
// whether the session was present.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// All returns a snapshot of the open sessions. Safe for iteration.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
