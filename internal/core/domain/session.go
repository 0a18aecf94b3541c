package domain

import "time"

// SessionStatus is the lifecycle state of an authorization session.
type SessionStatus string

const (
	// StatusPending means the flow has started but the provider callback
	// has not finished yet.
	StatusPending SessionStatus = "pending"

	// StatusCompleted means tokens (or the raw code fallback) are ready
	// for one-time pickup.
	StatusCompleted SessionStatus = "completed"

	// StatusError means the flow finished with a provider or exchange error.
	StatusError SessionStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// TokenBundle holds the provider tokens returned by a successful exchange.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthSession represents one in-flight authorization, keyed by its state token.
// It is created pending by begin, finalized at most once by the provider
// callback, and deleted on the first poll that observes a terminal status.
type AuthSession struct {
	State     string        `json:"state"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`

	// Tokens is set on completed sessions when the server-side exchange
	// succeeded.
	Tokens *TokenBundle `json:"tokens,omitempty"`

	// Code carries the raw authorization code when the exchange failed and
	// the degraded fallback applied. Never set together with Tokens.
	Code           string `json:"code,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	// ErrorMessage is set on error sessions.
	ErrorMessage string `json:"error,omitempty"`

	// Diagnostic context captured at creation. Never used for correctness.
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	// Backend records which store backend satisfied the last write
	// (redis or memory). Logged for degraded-mode visibility.
	Backend string `json:"backend,omitempty"`
}

// IsExpired checks if the session has expired.
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
