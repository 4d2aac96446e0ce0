// Package auth obtains and persists the OAuth 2.0 bearer credential used
// to call the bookmarks API.
//
// The flow mirrors how the tool has always worked: reuse the token on
// disk when it is still good, refresh it when possible, and only fall
// back to the interactive authorization-code prompt when there is nothing
// usable. Interactive authorization is the one place the tool reads from
// the console.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/seckatie/birdmark/internal/core/config"
)

// expiryMargin treats a credential as expired slightly before its actual
// expiry to tolerate clock skew and request latency.
const expiryMargin = 5 * time.Minute

// Scopes requested during authorization. offline.access is required for
// the API to issue a refresh token at all.
var Scopes = []string{"bookmark.read", "tweet.read", "users.read", "offline.access"}

// Endpoint is the X (Twitter) OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Credential is the persisted form of a bearer token. Keys beyond these
// are not interpreted.
type Credential struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Provider obtains a valid bearer credential, persisting it across runs.
type Provider struct {
	oauth     *oauth2.Config
	tokenFile string
	log       *zap.Logger

	// in/out are the interactive prompt streams; overridable in tests.
	in  io.Reader
	out io.Writer
	now func() time.Time
}

// NewProvider builds a Provider from the application config. tokenFile is
// where the credential is persisted between runs.
func NewProvider(cfg config.Config, tokenFile string, log *zap.Logger) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     Endpoint,
		},
		tokenFile: tokenFile,
		log:       log,
		in:        os.Stdin,
		out:       os.Stdout,
		now:       time.Now,
	}
}

// Obtain returns a usable bearer token, or an error when none can be
// produced. Callers treat an error as fatal: fixing it requires operator
// action (re-authorization), not a retry.
func (p *Provider) Obtain(ctx context.Context) (*oauth2.Token, error) {
	cred, err := p.load()
	if err == nil {
		if p.valid(cred) {
			p.log.Info("Using existing OAuth 2.0 token")
			return cred.token(), nil
		}
		if cred.RefreshToken != "" {
			tok, rerr := p.refresh(ctx, cred)
			if rerr == nil {
				return tok, nil
			}
			p.log.Warn("Token refresh failed, falling back to authorization flow", zap.Error(rerr))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		p.log.Warn("Failed to read stored token", zap.Error(err))
	}

	return p.authorize(ctx)
}

// valid reports whether the credential can be used as-is. A credential
// without an expiry is assumed good; the API rejects it if not.
func (p *Provider) valid(c Credential) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.After(p.now().Add(expiryMargin))
}

func (p *Provider) refresh(ctx context.Context, cred Credential) (*oauth2.Token, error) {
	p.log.Info("Refreshing OAuth 2.0 token")

	// Mark the token expired so the token source actually refreshes it;
	// oauth2 applies its own, much smaller expiry delta.
	stale := cred.token()
	stale.Expiry = p.now().Add(-time.Minute)

	tok, err := p.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if err := p.save(tok); err != nil {
		return nil, err
	}
	p.log.Info("OAuth 2.0 token refreshed")
	return tok, nil
}

// authorize runs the interactive authorization-code exchange. The
// operator visits the printed URL and pastes the code parameter from the
// callback redirect back into the console.
func (p *Provider) authorize(ctx context.Context) (*oauth2.Token, error) {
	p.log.Info("Starting OAuth 2.0 authorization flow...")

	verifier := oauth2.GenerateVerifier()
	authURL := p.oauth.AuthCodeURL("state", oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(p.out, "Please visit this URL to authorize the application:\n%s\n", authURL)
	fmt.Fprintln(p.out, "After authorization you will be redirected to a page that may show an error.")
	fmt.Fprintln(p.out, "This is normal - copy the 'code' parameter from the URL and paste it below.")
	fmt.Fprint(p.out, "Authorization code: ")

	scanner := bufio.NewScanner(p.in)
	if !scanner.Scan() {
		return nil, errors.New("no authorization code provided")
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return nil, errors.New("no authorization code provided")
	}

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := p.save(tok); err != nil {
		return nil, err
	}

	p.log.Info("OAuth 2.0 authorization successful")
	return tok, nil
}

func (p *Provider) load() (Credential, error) {
	data, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return Credential{}, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to parse token file %s: %w", p.tokenFile, err)
	}
	return cred, nil
}

func (p *Provider) save(tok *oauth2.Token) error {
	cred := Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		cred.ExpiresAt = &expiry
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(p.tokenFile, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}
	return nil
}

func (c Credential) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
	}
	if c.ExpiresAt != nil {
		tok.Expiry = *c.ExpiresAt
	}
	return tok
}
