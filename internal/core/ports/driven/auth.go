package driven

import "time"

// ScopeMaintenance authorizes the maintenance endpoints. Declared on the
// port so issuers and consumers share one spelling.
const ScopeMaintenance = "maintenance"

// AuthAdapter issues and validates the bearer tokens guarding maintenance
// endpoints. This is bridge-internal admin auth only; nothing here verifies
// provider responses.
type AuthAdapter interface {
	// GenerateToken creates a signed token carrying the given scope.
	GenerateToken(scope string, ttl time.Duration) (string, error)

	// ParseToken validates a token and returns its scope. Returns
	// domain.ErrTokenInvalid for malformed, expired, or mis-signed
	// tokens.
	ParseToken(token string) (string, error)
}
