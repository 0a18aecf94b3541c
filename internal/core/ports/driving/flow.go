package driving

import (
	"context"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
)

// FlowService orchestrates the authorization-code flow: begin, provider
// callback, client poll, and maintenance sweep.
type FlowService interface {
	// Begin starts an authorization flow. It generates a state token,
	// stores a pending session, and returns the provider authorization
	// URL to redirect the user to.
	Begin(ctx context.Context, req BeginRequest) (*BeginResponse, error)

	// Complete handles the provider redirect callback. It validates the
	// state token, exchanges the code for tokens, and finalizes the
	// session. A replayed callback on an already-finalized session is a
	// no-op.
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error)

	// Poll reports the session status for a state token. On the first
	// poll that observes a terminal status the session is consumed: the
	// payload is returned and the record deleted. Subsequent polls
	// report pending.
	Poll(ctx context.Context, state string) (*PollResponse, error)

	// Refresh exchanges a refresh token for a new token bundle on behalf
	// of the client.
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenBundle, error)

	// Sweep purges expired sessions and returns the number removed.
	Sweep(ctx context.Context) (int, error)
}

// BeginRequest carries the diagnostic context captured at flow start.
type BeginRequest struct {
	// UserAgent is the requesting client's user agent, for diagnostics.
	UserAgent string `json:"user_agent,omitempty"`

	// RemoteAddr is the requesting client's network address, for
	// diagnostics.
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// BeginResponse contains the authorization URL and the state token the
// client will poll with.
type BeginResponse struct {
	// AuthorizationURL is the provider URL to redirect the user to.
	AuthorizationURL string `json:"authorization_url"`

	// State is the correlation token; the client polls with it.
	State string `json:"state"`

	// ExpiresAt is when the pending session expires.
	ExpiresAt string `json:"expires_at"`
}

// CompleteRequest carries the provider callback parameters.
type CompleteRequest struct {
	// State is the state token the provider echoes back.
	State string `json:"state"`

	// Code is the authorization code; empty when the provider reported
	// an error.
	Code string `json:"code,omitempty"`

	// Error is the provider's error code, if any.
	Error string `json:"error,omitempty"`

	// ErrorDescription elaborates on Error.
	ErrorDescription string `json:"error_description,omitempty"`
}

// Causes of an error-status completion, for presentation: a provider
// denial is the user's doing, an exchange failure is ours.
const (
	ReasonProviderError  = "provider_error"
	ReasonExchangeFailed = "exchange_failed"
)

// CompleteResponse reports how the callback finalized the session. The
// machine-readable result travels only through the store, to be fetched
// by Poll.
type CompleteResponse struct {
	// Status is the terminal status the session reached.
	Status domain.SessionStatus `json:"status"`

	// Fallback is true when the exchange failed and the raw code was
	// stored instead of tokens.
	Fallback bool `json:"fallback,omitempty"`

	// Reason distinguishes why Status is error: ReasonProviderError or
	// ReasonExchangeFailed. Empty on completed sessions.
	Reason string `json:"reason,omitempty"`
}

// PollResponse is the one-shot status document returned to the polling
// client. Exactly one of the token fields, the code fields, or Error is
// populated on terminal statuses.
type PollResponse struct {
	Status domain.SessionStatus `json:"status"`

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Code and FallbackReason are set when the degraded fallback stored
	// the raw authorization code.
	Code           string `json:"code,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	Error string `json:"error,omitempty"`
}
