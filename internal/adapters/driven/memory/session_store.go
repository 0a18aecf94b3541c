// Package memory provides the process-local fallback SessionStore. Records
// live in a mutex-guarded map and are visible only within this process; a
// value written here is lost across restarts. That availability gap is a
// documented property of degraded mode, not hidden.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore implements driven.SessionStore with an in-process map.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.AuthSession
}

// NewSessionStore creates an empty in-memory SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.AuthSession),
	}
}

// Put upserts a session. Already-expired sessions are not stored.
func (s *SessionStore) Put(ctx context.Context, session *domain.AuthSession) error {
	if session.IsExpired() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.State] = clone(session)
	return nil
}

// Get retrieves a session, deleting it if expired.
func (s *SessionStore) Get(ctx context.Context, state string) (*domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(state)
}

// Update applies fn to the stored session under the store lock.
func (s *SessionStore) Update(ctx context.Context, state string, fn func(*domain.AuthSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(state)
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	s.sessions[state] = session
	return nil
}

// Take atomically retrieves and deletes a session.
func (s *SessionStore) Take(ctx context.Context, state string) (*domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(state)
	if err != nil {
		return nil, err
	}
	delete(s.sessions, state)
	return session, nil
}

// Delete removes a session. Missing keys are not an error.
func (s *SessionStore) Delete(ctx context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, state)
	return nil
}

// Sweep removes every expired session and returns the count.
func (s *SessionStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, state)
			removed++
		}
	}
	return removed, nil
}

// getLocked returns a copy of the live session or ErrNotFound, deleting
// expired entries lazily. Caller holds the lock.
func (s *SessionStore) getLocked(state string) (*domain.AuthSession, error) {
	session, ok := s.sessions[state]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if session.IsExpired() {
		delete(s.sessions, state)
		return nil, domain.ErrNotFound
	}
	return clone(session), nil
}

// clone copies a session so callers never share memory with the store.
func clone(session *domain.AuthSession) *domain.AuthSession {
	cp := *session
	if session.Tokens != nil {
		tokens := *session.Tokens
		cp.Tokens = &tokens
	}
	return &cp
}
