package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driving"
)

// Ensure flowService implements FlowService
var _ driving.FlowService = (*flowService)(nil)

const (
	// DefaultSessionTTL bounds how long a pending session is pollable.
	DefaultSessionTTL = 15 * time.Minute

	// DefaultStaleWindow bounds the age of state tokens accepted on the
	// callback path. Coarser than the session TTL: it rejects obviously
	// forged or ancient callbacks before touching storage.
	DefaultStaleWindow = 30 * time.Minute
)

// FlowServiceConfig holds configuration for the flow service.
type FlowServiceConfig struct {
	// Store persists authorization sessions.
	Store driven.SessionStore

	// Provider exchanges authorization codes for tokens.
	Provider driven.ProviderClient

	// SessionTTL is the pending-session lifetime. Defaults to
	// DefaultSessionTTL.
	SessionTTL time.Duration

	// StaleWindow is the maximum accepted state-token age on the
	// callback path. Defaults to DefaultStaleWindow.
	StaleWindow time.Duration

	// CodeFallback enables the degraded fallback: when the server-side
	// exchange fails, the session still completes carrying the raw
	// authorization code so a client able to exchange it itself is not
	// blocked.
	CodeFallback bool

	Logger *slog.Logger
}

// flowService implements the FlowService interface.
type flowService struct {
	store        driven.SessionStore
	provider     driven.ProviderClient
	sessionTTL   time.Duration
	staleWindow  time.Duration
	codeFallback bool
	logger       *slog.Logger
}

// NewFlowService creates a new flow service.
func NewFlowService(cfg FlowServiceConfig) driving.FlowService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = DefaultStaleWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &flowService{
		store:        cfg.Store,
		provider:     cfg.Provider,
		sessionTTL:   cfg.SessionTTL,
		staleWindow:  cfg.StaleWindow,
		codeFallback: cfg.CodeFallback,
		logger:       cfg.Logger,
	}
}

// Begin starts an authorization flow: one token, one pending record, one
// redirect URL.
func (s *flowService) Begin(ctx context.Context, req driving.BeginRequest) (*driving.BeginResponse, error) {
	state, err := domain.NewStateToken()
	if err != nil {
		return nil, fmt.Errorf("generate state token: %w", err)
	}

	now := time.Now()
	session := &domain.AuthSession{
		State:     state,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
		UserAgent: req.UserAgent,
		IPAddress: req.RemoteAddr,
	}

	if err := s.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("store pending session: %w", err)
	}

	return &driving.BeginResponse{
		AuthorizationURL: s.provider.AuthCodeURL(state),
		State:            state,
		ExpiresAt:        session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Complete handles the provider callback and finalizes the session exactly
// once. Replayed callbacks hit the pending-status guard in the update
// mutator and become no-ops.
func (s *flowService) Complete(ctx context.Context, req driving.CompleteRequest) (*driving.CompleteResponse, error) {
	token, err := domain.ParseStateToken(req.State)
	if err != nil {
		return nil, err
	}
	if token.Age() > s.staleWindow {
		return nil, domain.ErrStaleState
	}

	s.sweepQuietly(ctx)

	// Provider reported an error: no exchange, record it.
	if req.Error != "" {
		msg := req.Error
		if req.ErrorDescription != "" {
			msg = req.Error + ": " + req.ErrorDescription
		}
		if err := s.finalize(ctx, req.State, func(session *domain.AuthSession) {
			session.Status = domain.StatusError
			session.ErrorMessage = msg
		}); err != nil {
			return nil, err
		}
		return &driving.CompleteResponse{
			Status: domain.StatusError,
			Reason: driving.ReasonProviderError,
		}, nil
	}

	if req.Code == "" {
		return nil, domain.ErrMissingCode
	}

	tokens, exchangeErr := s.provider.ExchangeCode(ctx, req.Code)
	if exchangeErr == nil {
		if err := s.finalize(ctx, req.State, func(session *domain.AuthSession) {
			session.Status = domain.StatusCompleted
			session.Tokens = tokens
		}); err != nil {
			return nil, err
		}
		return &driving.CompleteResponse{Status: domain.StatusCompleted}, nil
	}

	if s.codeFallback {
		// Degraded fallback: complete with the raw code so a client able
		// to run its own exchange is not blocked on our failure.
		s.logger.Warn("code exchange failed, storing raw code fallback",
			"state", req.State, "error", exchangeErr)
		if err := s.finalize(ctx, req.State, func(session *domain.AuthSession) {
			session.Status = domain.StatusCompleted
			session.Code = req.Code
			session.FallbackReason = exchangeErr.Error()
		}); err != nil {
			return nil, err
		}
		return &driving.CompleteResponse{Status: domain.StatusCompleted, Fallback: true}, nil
	}

	if err := s.finalize(ctx, req.State, func(session *domain.AuthSession) {
		session.Status = domain.StatusError
		session.ErrorMessage = exchangeErr.Error()
	}); err != nil {
		return nil, err
	}
	return &driving.CompleteResponse{
		Status: domain.StatusError,
		Reason: driving.ReasonExchangeFailed,
	}, nil
}

// finalize applies a terminal mutation, guarded so a session transitions
// out of pending at most once. A replay surfaces as a nil error no-op.
func (s *flowService) finalize(ctx context.Context, state string, mutate func(*domain.AuthSession)) error {
	err := s.store.Update(ctx, state, func(session *domain.AuthSession) error {
		if session.Status != domain.StatusPending {
			return domain.ErrAlreadyFinalized
		}
		mutate(session)
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyFinalized) {
		s.logger.Info("duplicate callback ignored", "state", state)
		return nil
	}
	return err
}

// Poll reports the session status and consumes terminal sessions on first
// read.
func (s *flowService) Poll(ctx context.Context, state string) (*driving.PollResponse, error) {
	if !domain.ValidStateToken(state) {
		return nil, domain.ErrInvalidState
	}

	s.sweepQuietly(ctx)

	session, err := s.store.Get(ctx, state)
	if errors.Is(err, domain.ErrNotFound) {
		// Ambiguous with "never started"; the polling client always
		// knows it started the flow.
		return &driving.PollResponse{Status: domain.StatusPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !session.Status.Terminal() {
		return &driving.PollResponse{Status: domain.StatusPending}, nil
	}

	// Atomic get-and-delete: under racing pollers at most one caller
	// receives the record.
	taken, err := s.store.Take(ctx, state)
	if errors.Is(err, domain.ErrNotFound) {
		return &driving.PollResponse{Status: domain.StatusPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume session: %w", err)
	}

	resp := &driving.PollResponse{Status: taken.Status}
	switch {
	case taken.Status == domain.StatusError:
		resp.Error = taken.ErrorMessage
	case taken.Tokens != nil:
		resp.AccessToken = taken.Tokens.AccessToken
		resp.RefreshToken = taken.Tokens.RefreshToken
		resp.ExpiresIn = taken.Tokens.ExpiresIn
		resp.TokenType = taken.Tokens.TokenType
		resp.Scope = taken.Tokens.Scope
	default:
		resp.Code = taken.Code
		resp.FallbackReason = taken.FallbackReason
	}
	return resp, nil
}

// Refresh exchanges a refresh token for a new bundle. Pure proxy; nothing
// is stored.
func (s *flowService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenBundle, error) {
	return s.provider.RefreshToken(ctx, refreshToken)
}

// Sweep purges expired sessions.
func (s *flowService) Sweep(ctx context.Context) (int, error) {
	return s.store.Sweep(ctx)
}

// sweepQuietly runs an opportunistic sweep, logging failures instead of
// surfacing them: a failed sweep never blocks the request that triggered it.
func (s *flowService) sweepQuietly(ctx context.Context) {
	if _, err := s.store.Sweep(ctx); err != nil {
		s.logger.Warn("opportunistic sweep failed", "error", err)
	}
}
