package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the session does not exist or has expired.
	// Expired and never-written are deliberately indistinguishable.
	ErrNotFound = errors.New("session not found")

	// ErrStorageUnavailable indicates the store backend could not be
	// reached. Recoverable: callers fall back to the local backend.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidState indicates the state token does not match the
	// canonical grammar.
	ErrInvalidState = errors.New("invalid state token")

	// ErrStaleState indicates the state token's embedded timestamp is
	// outside the accepted callback window.
	ErrStaleState = errors.New("stale state token")

	// ErrAlreadyFinalized indicates a completion attempt on a session
	// that already reached a terminal status.
	ErrAlreadyFinalized = errors.New("session already finalized")

	// ErrMalformedResponse indicates a 2xx provider response without an
	// access token.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrCorrupted indicates an unparseable stored record. Treated as
	// expiry: the record is deleted and reported not found.
	ErrCorrupted = errors.New("corrupted session record")

	// ErrMissingCode indicates a provider callback carrying neither a
	// code nor an error parameter.
	ErrMissingCode = errors.New("missing authorization code")

	// ErrTokenInvalid indicates a maintenance token that is malformed,
	// expired, or signed with the wrong key.
	ErrTokenInvalid = errors.New("token invalid")
)

// ExchangeError is returned when the provider's token endpoint rejects an
// exchange or refresh with a non-2xx response.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.StatusCode, e.Body)
}
