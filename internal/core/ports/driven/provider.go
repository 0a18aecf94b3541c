package driven

import (
	"context"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
)

// ProviderClient talks to the membership provider's OAuth endpoints.
type ProviderClient interface {
	// AuthCodeURL builds the provider authorization URL embedding the
	// given state token, the registered redirect URI, scopes, and
	// client id.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens with a
	// single form-encoded POST. No retries. Returns
	// *domain.ExchangeError on non-2xx responses and
	// domain.ErrMalformedResponse when a 2xx body lacks an access token.
	ExchangeCode(ctx context.Context, code string) (*domain.TokenBundle, error)

	// RefreshToken exchanges a refresh token for a new bundle. Same
	// transport contract as ExchangeCode.
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenBundle, error)
}
