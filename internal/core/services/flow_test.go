package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/patron-bridge/internal/adapters/driven/memory"
	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driving"
)

// mockProvider implements driven.ProviderClient for testing
type mockProvider struct {
	exchangeBundle *domain.TokenBundle
	exchangeErr    error
	refreshBundle  *domain.TokenBundle
	refreshErr     error
	exchangeCalls  int
}

func (m *mockProvider) AuthCodeURL(state string) string {
	return "https://www.patreon.com/oauth2/authorize?response_type=code&state=" + url.QueryEscape(state)
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*domain.TokenBundle, error) {
	m.exchangeCalls++
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchangeBundle, nil
}

func (m *mockProvider) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenBundle, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshBundle, nil
}

func newTestService(provider *mockProvider) (driving.FlowService, *memory.SessionStore) {
	store := memory.NewSessionStore()
	svc := NewFlowService(FlowServiceConfig{
		Store:        store,
		Provider:     provider,
		CodeFallback: true,
	})
	return svc, store
}

func defaultBundle() *domain.TokenBundle {
	return &domain.TokenBundle{
		AccessToken:  "tok_1",
		RefreshToken: "ref_1",
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}
}

func TestFlowService_Begin(t *testing.T) {
	svc, store := newTestService(&mockProvider{})

	resp, err := svc.Begin(context.Background(), driving.BeginRequest{
		UserAgent:  "plugin/1.0",
		RemoteAddr: "10.0.0.1",
	})
	require.NoError(t, err)

	assert.True(t, domain.ValidStateToken(resp.State))
	assert.Contains(t, resp.AuthorizationURL, "state="+url.QueryEscape(resp.State))

	session, err := store.Get(context.Background(), resp.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, session.Status)
	assert.Equal(t, "plugin/1.0", session.UserAgent)
	assert.Equal(t, "10.0.0.1", session.IPAddress)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), session.ExpiresAt, time.Minute)
}

func TestFlowService_EndToEnd(t *testing.T) {
	provider := &mockProvider{exchangeBundle: defaultBundle()}
	svc, _ := newTestService(provider)
	ctx := context.Background()

	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)

	// Client polls before the callback: pending.
	poll, err := svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, poll.Status)

	// Provider redirects back with a code.
	complete, err := svc.Complete(ctx, driving.CompleteRequest{
		State: begin.State,
		Code:  "abc123def",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, complete.Status)
	assert.False(t, complete.Fallback)

	// First terminal poll delivers the bundle.
	poll, err = svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, poll.Status)
	assert.Equal(t, "tok_1", poll.AccessToken)
	assert.Equal(t, "ref_1", poll.RefreshToken)
	assert.Equal(t, 3600, poll.ExpiresIn)
	assert.Equal(t, "Bearer", poll.TokenType)
	assert.Empty(t, poll.Code)

	// Second poll: the record is consumed, pending again.
	poll, err = svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, poll.Status)
	assert.Empty(t, poll.AccessToken)
}

func TestFlowService_DegradedFallback(t *testing.T) {
	provider := &mockProvider{
		exchangeErr: &domain.ExchangeError{StatusCode: 502, Body: "bad gateway"},
	}
	svc, _ := newTestService(provider)
	ctx := context.Background()

	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)

	complete, err := svc.Complete(ctx, driving.CompleteRequest{
		State: begin.State,
		Code:  "abc123def",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, complete.Status)
	assert.True(t, complete.Fallback)

	poll, err := svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, poll.Status)
	assert.Equal(t, "abc123def", poll.Code)
	assert.Contains(t, poll.FallbackReason, "502")
	assert.Empty(t, poll.AccessToken, "token fields and code are mutually exclusive")

	// Consumed after delivery.
	poll, err = svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, poll.Status)
}

func TestFlowService_ExchangeFailureWithoutFallback(t *testing.T) {
	provider := &mockProvider{
		exchangeErr: &domain.ExchangeError{StatusCode: 400, Body: "invalid_grant"},
	}
	store := memory.NewSessionStore()
	svc := NewFlowService(FlowServiceConfig{
		Store:        store,
		Provider:     provider,
		CodeFallback: false,
	})
	ctx := context.Background()

	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)

	complete, err := svc.Complete(ctx, driving.CompleteRequest{
		State: begin.State,
		Code:  "bad-code",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, complete.Status)
	assert.Equal(t, driving.ReasonExchangeFailed, complete.Reason)

	poll, err := svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, poll.Status)
	assert.Contains(t, poll.Error, "400")
}

func TestFlowService_ProviderReportedError(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(provider)
	ctx := context.Background()

	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)

	complete, err := svc.Complete(ctx, driving.CompleteRequest{
		State:            begin.State,
		Error:            "access_denied",
		ErrorDescription: "The user denied access",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, complete.Status)
	assert.Equal(t, driving.ReasonProviderError, complete.Reason)
	assert.Zero(t, provider.exchangeCalls, "no exchange on provider error")

	poll, err := svc.Poll(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, poll.Status)
	assert.Equal(t, "access_denied: The user denied access", poll.Error)
}

func TestFlowService_Complete_ReplayIsNoOp(t *testing.T) {
	provider := &mockProvider{exchangeBundle: defaultBundle()}
	svc, store := newTestService(provider)
	ctx := context.Background()

	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, driving.CompleteRequest{State: begin.State, Code: "abc123def"})
	require.NoError(t, err)

	// Replayed callback reporting an error must not overwrite the
	// completed session.
	_, err = svc.Complete(ctx, driving.CompleteRequest{State: begin.State, Error: "access_denied"})
	require.NoError(t, err)

	session, err := store.Get(ctx, begin.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	assert.Equal(t, "tok_1", session.Tokens.AccessToken)
}

func TestFlowService_Complete_Validation(t *testing.T) {
	svc, _ := newTestService(&mockProvider{})
	ctx := context.Background()

	_, err := svc.Complete(ctx, driving.CompleteRequest{State: "garbage", Code: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// Well-formed but ancient token.
	stale := strings.Repeat("ab", 16) + "_1600000000000"
	_, err = svc.Complete(ctx, driving.CompleteRequest{State: stale, Code: "x"})
	assert.ErrorIs(t, err, domain.ErrStaleState)

	// Valid fresh token, no code, no error.
	begin, err := svc.Begin(ctx, driving.BeginRequest{})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, driving.CompleteRequest{State: begin.State})
	assert.ErrorIs(t, err, domain.ErrMissingCode)
}

func TestFlowService_Complete_UnknownSession(t *testing.T) {
	svc, _ := newTestService(&mockProvider{exchangeBundle: defaultBundle()})

	token, err := domain.NewStateToken()
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), driving.CompleteRequest{State: token, Code: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFlowService_Poll_InvalidState(t *testing.T) {
	svc, _ := newTestService(&mockProvider{})

	_, err := svc.Poll(context.Background(), "not a token")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestFlowService_Poll_UnknownTokenReportsPending(t *testing.T) {
	svc, _ := newTestService(&mockProvider{})

	token, err := domain.NewStateToken()
	require.NoError(t, err)

	poll, err := svc.Poll(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, poll.Status)
}

func TestFlowService_Refresh(t *testing.T) {
	provider := &mockProvider{refreshBundle: defaultBundle()}
	svc, _ := newTestService(provider)

	bundle, err := svc.Refresh(context.Background(), "ref_0")
	require.NoError(t, err)
	assert.Equal(t, "tok_1", bundle.AccessToken)

	provider.refreshErr = &domain.ExchangeError{StatusCode: 401, Body: "invalid"}
	_, err = svc.Refresh(context.Background(), "ref_0")
	var exchangeErr *domain.ExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, 401, exchangeErr.StatusCode)
}

func TestFlowService_Sweep(t *testing.T) {
	svc, _ := newTestService(&mockProvider{})

	removed, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
