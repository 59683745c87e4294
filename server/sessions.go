package server

import (
	"sort"
	"sync"
	"time"

	"github.com/chazu/monkey/pkg/session"
)

// storedSession is a live session and its bookkeeping.
type storedSession struct {
	worker   *SessionWorker
	name     string
	engine   session.Engine
	created  time.Time
	lastUsed time.Time
}

// SessionStore maps session IDs to their workers.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*storedSession
	limits   session.Limits
	now      func() time.Time
}

// NewSessionStore creates a new session store. Every session it creates
// runs under limits.
func NewSessionStore(limits session.Limits) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*storedSession),
		limits:   limits,
		now:      time.Now,
	}
}

// Create starts a new session with an optional name.
func (s *SessionStore) Create(name string, engine session.Engine) *SessionWorker {
	w := NewSessionWorker(session.WithEngine(engine), session.WithLimits(s.limits))

	now := s.now()
	s.mu.Lock()
	s.sessions[w.ID()] = &storedSession{
		worker:   w,
		name:     name,
		engine:   engine,
		created:  now,
		lastUsed: now,
	}
	s.mu.Unlock()

	return w
}

// Ephemeral starts a session that is not registered in the store. The
// caller must Stop it.
func (s *SessionStore) Ephemeral() *SessionWorker {
	return NewSessionWorker(session.WithLimits(s.limits))
}

// Get retrieves a session's worker by ID and marks it used.
func (s *SessionStore) Get(id string) (*SessionWorker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	st.lastUsed = s.now()
	return st.worker, true
}

// Destroy removes a session and stops its worker. It reports whether the
// session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	st, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		st.worker.Stop()
	}
	return ok
}

// sessionEntry is a snapshot of one session's metadata.
type sessionEntry struct {
	ID     string
	Name   string
	Engine session.Engine
	Worker *SessionWorker
}

// List returns every live session, oldest first.
func (s *SessionStore) List() []sessionEntry {
	s.mu.Lock()
	type ordered struct {
		entry   sessionEntry
		created time.Time
	}
	all := make([]ordered, 0, len(s.sessions))
	for id, st := range s.sessions {
		all = append(all, ordered{
			entry:   sessionEntry{ID: id, Name: st.name, Engine: st.engine, Worker: st.worker},
			created: st.created,
		})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].created.Equal(all[j].created) {
			return all[i].entry.ID < all[j].entry.ID
		}
		return all[i].created.Before(all[j].created)
	})
	out := make([]sessionEntry, len(all))
	for i, o := range all {
		out[i] = o.entry
	}
	return out
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep destroys sessions that haven't been used within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var expired []*storedSession
	for id, st := range s.sessions {
		if st.lastUsed.Before(cutoff) {
			expired = append(expired, st)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, st := range expired {
		st.worker.Stop()
	}
	return len(expired)
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// Close stops every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*storedSession)
	s.mu.Unlock()

	for _, st := range all {
		st.worker.Stop()
	}
}
