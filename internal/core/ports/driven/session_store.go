package driven

import (
	"context"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
)

// SessionStore persists authorization sessions keyed by state token.
//
// Two implementations exist: a Redis-backed store (shared across processes,
// native TTL) and a process-local in-memory store used when Redis is
// unreachable. A failover composite hides the choice from callers; the
// orchestrator never knows which backend served a request.
type SessionStore interface {
	// Put upserts a session. The TTL is derived from the session's
	// ExpiresAt; already-expired sessions are not written. Returns
	// domain.ErrStorageUnavailable when the backend cannot be reached.
	Put(ctx context.Context, session *domain.AuthSession) error

	// Get retrieves a session by state token. Returns domain.ErrNotFound
	// when the session was never written, has expired, or its stored
	// payload is unparseable. Expired and corrupt records are deleted
	// as a side effect (lazy expiry).
	Get(ctx context.Context, state string) (*domain.AuthSession, error)

	// Update applies fn to the stored session in one logical
	// read-modify-write. fn may return an error to abort the write;
	// that error is returned unchanged. Returns domain.ErrNotFound when
	// the prior record is missing or expired.
	Update(ctx context.Context, state string, fn func(*domain.AuthSession) error) error

	// Take atomically retrieves and deletes a session. This is the
	// exactly-once consumption primitive: under racing pollers at most
	// one caller receives the record, the rest get domain.ErrNotFound.
	Take(ctx context.Context, state string) (*domain.AuthSession, error)

	// Delete removes a session. Absence of the key is not an error.
	Delete(ctx context.Context, state string) error

	// Sweep deletes every expired or unparseable record and returns the
	// number removed. Called periodically and opportunistically since a
	// serverless deployment has no background scheduler guarantee.
	Sweep(ctx context.Context) (int, error)
}
