package patreon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
)

func newTestClient(tokenURL string) *Client {
	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://bridge.example.com/oauth/callback",
		TokenURL:     tokenURL,
	})
}

func TestClient_AuthCodeURL(t *testing.T) {
	client := newTestClient("")

	raw := client.AuthCodeURL("abc_123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("unparseable auth URL: %v", err)
	}

	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("expected response_type=code, got %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("expected client_id, got %q", q.Get("client_id"))
	}
	if q.Get("state") != "abc_123" {
		t.Errorf("expected state abc_123, got %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != "https://bridge.example.com/oauth/callback" {
		t.Errorf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
	if q.Get("scope") == "" {
		t.Error("expected a scope parameter")
	}
	if !strings.HasPrefix(raw, defaultAuthURL) {
		t.Errorf("expected default authorize endpoint, got %q", raw)
	}
}

func TestClient_ExchangeCode_Success(t *testing.T) {
	var gotBody url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotBody = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok_1","refresh_token":"ref_1","expires_in":3600,"token_type":"Bearer","scope":"identity"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	bundle, err := client.ExchangeCode(context.Background(), "abc123def")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.AccessToken != "tok_1" || bundle.RefreshToken != "ref_1" {
		t.Errorf("unexpected bundle: %+v", bundle)
	}
	if bundle.ExpiresIn != 3600 || bundle.TokenType != "Bearer" {
		t.Errorf("unexpected bundle: %+v", bundle)
	}

	if gotBody.Get("grant_type") != "authorization_code" {
		t.Errorf("expected grant_type authorization_code, got %q", gotBody.Get("grant_type"))
	}
	if gotBody.Get("code") != "abc123def" {
		t.Errorf("expected code abc123def, got %q", gotBody.Get("code"))
	}
	if gotBody.Get("client_secret") != "client-secret" {
		t.Errorf("expected client credentials in body")
	}
	if gotBody.Get("redirect_uri") == "" {
		t.Errorf("expected redirect_uri in body")
	}
}

func TestClient_ExchangeCode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ExchangeCode(context.Background(), "bad-code")

	var exchangeErr *domain.ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", exchangeErr.StatusCode)
	}
	if !strings.Contains(exchangeErr.Body, "invalid_grant") {
		t.Errorf("expected provider body preserved, got %q", exchangeErr.Body)
	}
}

func TestClient_ExchangeCode_MalformedResponse(t *testing.T) {
	cases := map[string]string{
		"not json":        "plain text",
		"no access token": `{"token_type":"Bearer"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL)
			_, err := client.ExchangeCode(context.Background(), "code")
			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestClient_RefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("expected grant_type refresh_token, got %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "ref_1" {
			t.Errorf("expected refresh_token ref_1, got %q", r.PostForm.Get("refresh_token"))
		}
		w.Write([]byte(`{"access_token":"tok_2","refresh_token":"ref_2","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	bundle, err := client.RefreshToken(context.Background(), "ref_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.AccessToken != "tok_2" || bundle.RefreshToken != "ref_2" {
		t.Errorf("unexpected bundle: %+v", bundle)
	}
}

func TestClient_ExchangeCode_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	client := newTestClient(srv.URL)
	_, err := client.ExchangeCode(context.Background(), "code")

	var exchangeErr *domain.ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected ExchangeError for transport failure, got %v", err)
	}
	if exchangeErr.StatusCode != 0 {
		t.Errorf("expected status 0 for transport failure, got %d", exchangeErr.StatusCode)
	}
}
