package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/seckatie/birdmark/internal/core/config"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	cfg := config.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8080/callback",
	}
	tokenFile := filepath.Join(t.TempDir(), "oauth2_token.json")
	return NewProvider(cfg, tokenFile, zap.NewNop())
}

func writeCredential(t *testing.T, p *Provider, cred Credential) {
	t.Helper()
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.tokenFile, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestValid(t *testing.T) {
	p := testProvider(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	t.Run("no access token", func(t *testing.T) {
		if p.valid(Credential{}) {
			t.Error("empty credential should not be valid")
		}
	})

	t.Run("no expiry is assumed good", func(t *testing.T) {
		if !p.valid(Credential{AccessToken: "tok"}) {
			t.Error("credential without expiry should be valid")
		}
	})

	t.Run("expiry beyond margin", func(t *testing.T) {
		exp := now.Add(time.Hour)
		if !p.valid(Credential{AccessToken: "tok", ExpiresAt: &exp}) {
			t.Error("credential expiring in an hour should be valid")
		}
	})

	t.Run("expiry inside margin counts as expired", func(t *testing.T) {
		exp := now.Add(2 * time.Minute)
		if p.valid(Credential{AccessToken: "tok", ExpiresAt: &exp}) {
			t.Error("credential expiring in 2 minutes should be treated as expired")
		}
	})

	t.Run("already expired", func(t *testing.T) {
		exp := now.Add(-time.Hour)
		if p.valid(Credential{AccessToken: "tok", ExpiresAt: &exp}) {
			t.Error("expired credential should not be valid")
		}
	})
}

func TestObtainUsesStoredToken(t *testing.T) {
	p := testProvider(t)
	exp := time.Now().Add(time.Hour)
	writeCredential(t, p, Credential{AccessToken: "stored-token", ExpiresAt: &exp})

	tok, err := p.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if tok.AccessToken != "stored-token" {
		t.Errorf("AccessToken = %q, want stored-token", tok.AccessToken)
	}
}

func TestObtainRefreshesExpiredToken(t *testing.T) {
	var sawRefresh bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") == "refresh-1" {
			sawRefresh = true
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"access_token":"fresh-token","token_type":"bearer","refresh_token":"refresh-2","expires_in":7200}`)); err != nil {
			t.Fatal(err)
		}
	}))
	defer ts.Close()

	p := testProvider(t)
	p.oauth.Endpoint = oauth2.Endpoint{TokenURL: ts.URL, AuthStyle: oauth2.AuthStyleInHeader}

	exp := time.Now().Add(-time.Hour)
	writeCredential(t, p, Credential{
		AccessToken:  "old-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    &exp,
	})

	tok, err := p.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if !sawRefresh {
		t.Error("expected a refresh_token grant request")
	}
	if tok.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want fresh-token", tok.AccessToken)
	}

	// The refreshed credential must be persisted for the next run.
	data, err := os.ReadFile(p.tokenFile)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		t.Fatalf("token file not valid JSON: %v", err)
	}
	if cred.AccessToken != "fresh-token" || cred.RefreshToken != "refresh-2" {
		t.Errorf("persisted credential = %+v", cred)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Error("token file should be pretty-printed")
	}
}

func TestObtainInteractiveFlow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.Form.Get("code"); got != "pasted-code" {
			t.Errorf("code = %q, want pasted-code", got)
		}
		if r.Form.Get("code_verifier") == "" {
			t.Error("expected a PKCE code_verifier")
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"access_token":"new-token","token_type":"bearer","expires_in":7200}`)); err != nil {
			t.Fatal(err)
		}
	}))
	defer ts.Close()

	p := testProvider(t)
	p.oauth.Endpoint = oauth2.Endpoint{AuthURL: ts.URL + "/authorize", TokenURL: ts.URL, AuthStyle: oauth2.AuthStyleInHeader}
	p.in = strings.NewReader("pasted-code\n")
	var prompt strings.Builder
	p.out = &prompt

	tok, err := p.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if tok.AccessToken != "new-token" {
		t.Errorf("AccessToken = %q, want new-token", tok.AccessToken)
	}
	if !strings.Contains(prompt.String(), "code_challenge") {
		t.Error("authorization URL should carry a PKCE challenge")
	}
	if _, err := os.Stat(p.tokenFile); err != nil {
		t.Errorf("token should be persisted: %v", err)
	}
}

func TestObtainEmptyCodeFails(t *testing.T) {
	p := testProvider(t)
	p.in = strings.NewReader("\n")
	var sink strings.Builder
	p.out = &sink

	if _, err := p.Obtain(context.Background()); err == nil {
		t.Error("expected an error for an empty authorization code")
	}
}
