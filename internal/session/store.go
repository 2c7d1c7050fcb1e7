// Package session provides the per-session registry of scoring engines. The
// store is an explicit object injected wherever sessions are handled; there is
// deliberately no package-level instance.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"medscore/internal/logging"
	"medscore/internal/scoring"
)

// Session binds one scoring engine to one interview session.
type Session struct {
	ID        string
	Engine    *scoring.Engine
	CreatedAt time.Time

	lastSeen time.Time
}

// Store is an in-memory session registry. Expiry is externally driven:
// callers decide when to run a sweep and with what idle budget.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   logging.Logger
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(logger logging.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Create builds a scoring engine from the rubric source and registers it
// under a fresh session ID.
func (s *Store) Create(source any, judge scoring.Judge, opts ...scoring.Option) (*Session, error) {
	engine, err := scoring.NewEngine(source, judge, opts...)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Engine:    engine,
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session %s created", sess.ID)
	return sess, nil
}

// Get returns the session with the given ID and refreshes its idle clock.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// Delete removes the session. In-flight recompute results for a deleted
// session are simply discarded by their owner.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if existed {
		s.logger.Info("session %s deleted", id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepExpired removes sessions idle for longer than maxIdle and returns how
// many were removed.
func (s *Store) SweepExpired(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("sweep removed %d expired sessions", removed)
	}
	return removed
}
