package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

// Key prefix for authorization sessions
const sessionPrefix = "authsession:"

// updateRetries bounds optimistic-concurrency retries on Update.
const updateRetries = 3

// SessionStore implements driven.SessionStore using Redis.
// Sessions use Redis TTL for automatic expiration; Take maps to GETDEL so
// terminal consumption is atomic across processes.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Redis-backed SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Put stores a session with TTL based on ExpiresAt.
func (s *SessionStore) Put(ctx context.Context, session *domain.AuthSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		// Session already expired, don't save
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionPrefix+session.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: put session: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Get retrieves a session by state token. Corrupt payloads are deleted and
// reported as not found, same as expiry.
func (s *SessionStore) Get(ctx context.Context, state string) (*domain.AuthSession, error) {
	data, err := s.client.Get(ctx, sessionPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStorageUnavailable, err)
	}

	session, err := decode(data)
	if err != nil {
		s.client.Del(ctx, sessionPrefix+state)
		return nil, domain.ErrNotFound
	}
	if session.IsExpired() {
		// Redis TTL normally covers this; the clock check guards against
		// records written with a longer TTL than their ExpiresAt.
		s.client.Del(ctx, sessionPrefix+state)
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// Update applies fn inside a WATCH transaction so concurrent writers to the
// same state token cannot interleave.
func (s *SessionStore) Update(ctx context.Context, state string, fn func(*domain.AuthSession) error) error {
	key := sessionPrefix + state

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: get session: %v", domain.ErrStorageUnavailable, err)
		}

		session, err := decode(data)
		if err != nil || session.IsExpired() {
			tx.Del(ctx, key)
			return domain.ErrNotFound
		}

		if err := fn(session); err != nil {
			return err
		}

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		ttl := time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return domain.ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: update session: %v", domain.ErrStorageUnavailable, err)
}

// Take atomically retrieves and deletes a session via GETDEL.
func (s *SessionStore) Take(ctx context.Context, state string) (*domain.AuthSession, error) {
	data, err := s.client.GetDel(ctx, sessionPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: take session: %v", domain.ErrStorageUnavailable, err)
	}

	session, err := decode(data)
	if err != nil || session.IsExpired() {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// Delete removes a session. Missing keys are not an error.
func (s *SessionStore) Delete(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, sessionPrefix+state).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Sweep scans all session keys and removes corrupt or clock-expired
// records. Redis TTL handles routine expiry; sweep reports what it removed
// on top of that.
func (s *SessionStore) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("%w: sweep: %v", domain.ErrStorageUnavailable, err)
		}

		session, err := decode(data)
		if err != nil || session.IsExpired() {
			if s.client.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: sweep scan: %v", domain.ErrStorageUnavailable, err)
	}
	return removed, nil
}

// decode unmarshals a stored record, mapping parse failures to ErrCorrupted.
func decode(data []byte) (*domain.AuthSession, error) {
	var session domain.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, domain.ErrCorrupted
	}
	if session.State == "" || session.Status == "" {
		return nil, domain.ErrCorrupted
	}
	return &session, nil
}
