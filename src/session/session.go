package session

import (
	"sync"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/services"
)

// CallSession tracks the state of one active phone call. The transport owns
// the frame stream; history is mutated only by the call pipeline, one turn at
// a time, so no lock is needed on the session itself.
type CallSession struct {
	ID        string
	CallerID  string
	History   []services.Message
	StartedAt time.Time

	mu     sync.Mutex
	active bool
}

// NewCallSession creates an active session for the given call identifier
func NewCallSession(id, callerID string) *CallSession {
	return &CallSession{
		ID:        id,
		CallerID:  callerID,
		StartedAt: time.Now().UTC(),
		active:    true,
	}
}

// Active reports whether the call has not yet been torn down
func (s *CallSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// End marks the session inactive and returns the call duration. Only the
// first call has any effect; later calls report ok=false.
func (s *CallSession) End() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0, false
	}
	s.active = false
	return time.Since(s.StartedAt), true
}

// Store maps call identifiers to sessions. It is the only mutable structure
// shared across call pipelines; all methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*CallSession)}
}

// Add registers a session under its call identifier
func (st *Store) Add(s *CallSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the session for a call identifier, if present
func (st *Store) Get(id string) (*CallSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Remove deletes and returns the session for a call identifier. A second
// Remove for the same id returns nil, so teardown runs exactly once even if
// the transport reports both a stop event and a disconnect.
func (st *Store) Remove(id string) *CallSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.sessions[id]
	delete(st.sessions, id)
	return s
}

// Count returns the number of active sessions
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
