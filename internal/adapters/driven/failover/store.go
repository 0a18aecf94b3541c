// Package failover composes a shared primary SessionStore with a
// process-local fallback. Callers never know which backend served a
// request; the degraded path is recorded on the session and in the logs
// because a fallback write is visible only within this process.
package failover

import (
	"context"
	"errors"
	"log/slog"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*Store)(nil)

// Store is a SessionStore that retries once against a local fallback when
// the primary backend is unreachable.
type Store struct {
	primary      driven.SessionStore
	fallback     driven.SessionStore
	primaryName  string
	fallbackName string
	logger       *slog.Logger
}

// Config holds the two backends and their names as recorded on sessions.
type Config struct {
	Primary      driven.SessionStore
	Fallback     driven.SessionStore
	PrimaryName  string
	FallbackName string
	Logger       *slog.Logger
}

// NewStore creates a failover SessionStore.
func NewStore(cfg Config) *Store {
	if cfg.PrimaryName == "" {
		cfg.PrimaryName = "redis"
	}
	if cfg.FallbackName == "" {
		cfg.FallbackName = "memory"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		primary:      cfg.Primary,
		fallback:     cfg.Fallback,
		primaryName:  cfg.PrimaryName,
		fallbackName: cfg.FallbackName,
		logger:       cfg.Logger,
	}
}

// Put writes to the primary, retrying once against the fallback on storage
// failure. The satisfying backend is recorded on the session before the
// write so the stored record carries it.
func (s *Store) Put(ctx context.Context, session *domain.AuthSession) error {
	session.Backend = s.primaryName
	err := s.primary.Put(ctx, session)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}

	s.logger.Warn("primary store unavailable, writing to local fallback",
		"state", session.State, "error", err)
	session.Backend = s.fallbackName
	return s.fallback.Put(ctx, session)
}

// Get tries the primary first. A session written to the fallback during a
// primary outage stays reachable after the primary recovers, so ErrNotFound
// from the primary also falls through.
func (s *Store) Get(ctx context.Context, state string) (*domain.AuthSession, error) {
	session, err := s.primary.Get(ctx, state)
	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrNotFound) {
		fallbackSession, fallbackErr := s.fallback.Get(ctx, state)
		if errors.Is(fallbackErr, domain.ErrNotFound) {
			// Preserve the primary's verdict when neither backend has it.
			return nil, err
		}
		return fallbackSession, fallbackErr
	}
	return session, err
}

// Update tries the primary first. A session written to the fallback during
// a primary outage is only reachable through the fallback, so ErrNotFound
// from the primary also falls through.
func (s *Store) Update(ctx context.Context, state string, fn func(*domain.AuthSession) error) error {
	err := s.primary.Update(ctx, state, fn)
	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrNotFound) {
		fallbackErr := s.fallback.Update(ctx, state, fn)
		if errors.Is(fallbackErr, domain.ErrNotFound) {
			// Preserve the primary's verdict when neither backend has it.
			return err
		}
		return fallbackErr
	}
	return err
}

// Take consumes from whichever backend holds the session.
func (s *Store) Take(ctx context.Context, state string) (*domain.AuthSession, error) {
	session, err := s.primary.Take(ctx, state)
	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrNotFound) {
		if fallbackSession, fallbackErr := s.fallback.Take(ctx, state); fallbackErr == nil {
			return fallbackSession, nil
		}
		return nil, err
	}
	return session, err
}

// Delete removes the session from both backends so no stale copy survives
// a failover window.
func (s *Store) Delete(ctx context.Context, state string) error {
	err := s.primary.Delete(ctx, state)
	if fallbackErr := s.fallback.Delete(ctx, state); fallbackErr != nil {
		return fallbackErr
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		// Best-effort: the fallback copy is gone and Redis TTL will
		// reap the primary copy.
		s.logger.Warn("primary delete failed", "state", state, "error", err)
		return nil
	}
	return err
}

// Sweep sweeps both backends and sums the counts.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	removed, err := s.primary.Sweep(ctx)
	if err != nil && !errors.Is(err, domain.ErrStorageUnavailable) {
		return removed, err
	}
	if err != nil {
		s.logger.Warn("primary sweep failed", "error", err)
	}

	fallbackRemoved, fallbackErr := s.fallback.Sweep(ctx)
	return removed + fallbackRemoved, fallbackErr
}
