package patreon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.ProviderClient = (*Client)(nil)

const (
	defaultAuthURL  = "https://www.patreon.com/oauth2/authorize"
	defaultTokenURL = "https://www.patreon.com/api/oauth2/token"

	// One bounded outbound call per exchange, no retries.
	defaultTimeout = 10 * time.Second
)

// Config holds the OAuth application credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Scopes requested on the authorization URL.
	Scopes []string

	// AuthURL and TokenURL override the Patreon defaults, mainly for tests.
	AuthURL  string
	TokenURL string

	// Timeout bounds the outbound token-endpoint call. Defaults to 10s.
	Timeout time.Duration
}

// Client talks to Patreon's OAuth endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Patreon provider client.
func NewClient(cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"identity", "identity.memberships"}
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// AuthCodeURL constructs the Patreon authorization URL.
func (c *Client) AuthCodeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
		"state":         {state},
	}
	return c.cfg.AuthURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.TokenBundle, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
	})
}

// RefreshToken exchanges a refresh token for a new bundle.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenBundle, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	})
}

// token issues one form-encoded POST to the token endpoint.
func (c *Client) token(ctx context.Context, params url.Values) (*domain.TokenBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ExchangeError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, domain.ErrMalformedResponse
	}
	if tokenResp.AccessToken == "" {
		return nil, domain.ErrMalformedResponse
	}

	return &domain.TokenBundle{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresIn:    tokenResp.ExpiresIn,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
	}, nil
}
