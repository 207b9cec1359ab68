// Package google provides the Google Workspace integrations for concierge:
// OAuth credential management and the Calendar and Gmail tool backends.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/spokenlabs/concierge/internal/httpc"
)

// DefaultScopes are the scopes the assistant needs: read-only calendar and
// read-only mail.
var DefaultScopes = []string{
	calendar.CalendarReadonlyScope,
	gmail.GmailReadonlyScope,
}

// ErrAuthRequired is returned when no usable cached token exists and an
// operator has to complete the interactive authorization flow. It is never
// resolved by opening a browser mid-conversation; the operator server
// surfaces the authorization URL instead.
var ErrAuthRequired = errors.New("google: interactive authorization required")

// Manager owns the OAuth credential lifecycle:
//
//	NoToken -> Loaded(valid) -> used as-is
//	NoToken -> Loaded(expired) -> Refreshed -> Persisted
//	NoToken -> InteractiveAuth (operator) -> Persisted
//
// The on-disk token cache is the single source of truth for avoiding
// interactive reauthorization; every successful refresh or fresh
// authorization overwrites it.
type Manager struct {
	cfg       *oauth2.Config
	tokenPath string

	mu    sync.Mutex
	token *oauth2.Token

	// httpClient overrides the shared client; set by tests to point the
	// token endpoint at a fake server.
	httpClient *http.Client
}

// NewManager creates a credential manager from an installed-app client
// secret file. A missing credentials file is a fatal configuration error,
// not something to paper over.
func NewManager(credentialsPath, tokenPath string, scopes ...string) (*Manager, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if tokenPath == "" {
		tokenPath = "token.json"
	}

	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("google: credentials file not found at %s: %w", credentialsPath, err)
	}

	cfg, err := googleoauth.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("google: invalid credentials file %s: %w", credentialsPath, err)
	}

	return &Manager{
		cfg:       cfg,
		tokenPath: tokenPath,
	}, nil
}

// SetRedirectURL overrides the OAuth callback URL, e.g. to point at the
// operator server's /auth/callback route.
func (m *Manager) SetRedirectURL(url string) {
	m.cfg.RedirectURL = url
}

// Token returns a valid access token, loading the cache and refreshing at
// most once if needed. A successful refresh is persisted before Token
// returns. With no usable cached token it reports ErrAuthRequired.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil {
		if err := m.loadLocked(); err != nil {
			return nil, fmt.Errorf("%w: no cached token at %s", ErrAuthRequired, m.tokenPath)
		}
	}

	if m.token.Valid() {
		return m.token, nil
	}

	if m.token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: cached token expired with no refresh token", ErrAuthRequired)
	}

	refreshed, err := m.cfg.TokenSource(m.httpContext(ctx), m.token).Token()
	if err != nil {
		// A dead refresh token means a new grant; surface the
		// interactive state rather than retrying.
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrAuthRequired, err)
	}

	m.token = refreshed
	if err := m.saveLocked(); err != nil {
		return nil, fmt.Errorf("google: failed to persist refreshed token: %w", err)
	}

	return m.token, nil
}

// Client returns an HTTP client that authenticates requests with a valid
// token.
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(m.httpContext(ctx), oauth2.StaticTokenSource(tok)), nil
}

// IsAuthorized reports whether a currently-valid token is cached. It never
// touches the network.
func (m *Manager) IsAuthorized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil {
		if err := m.loadLocked(); err != nil {
			return false
		}
	}
	return m.token.Valid() || m.token.RefreshToken != ""
}

// AuthURL returns the authorization URL for the operator-driven consent
// flow. Offline access is requested so a refresh token comes back.
func (m *Manager) AuthURL(state string) string {
	return m.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it,
// completing the interactive flow.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	tok, err := m.cfg.Exchange(m.httpContext(ctx), code)
	if err != nil {
		return fmt.Errorf("google: failed to exchange authorization code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = tok
	if err := m.saveLocked(); err != nil {
		return fmt.Errorf("google: failed to persist token: %w", err)
	}
	return nil
}

// TokenPath returns the token cache location.
func (m *Manager) TokenPath() string {
	return m.tokenPath
}

// httpContext injects the shared HTTP client (or a test override) into the
// context the oauth2 package uses for token requests.
func (m *Manager) httpContext(ctx context.Context) context.Context {
	hc := m.httpClient
	if hc == nil {
		hc = httpc.Client
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// loadLocked reads the token cache. Caller holds m.mu.
func (m *Manager) loadLocked() error {
	data, err := os.ReadFile(m.tokenPath)
	if err != nil {
		return err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("google: malformed token cache %s: %w", m.tokenPath, err)
	}

	m.token = &token
	return nil
}

// saveLocked overwrites the token cache. Caller holds m.mu.
func (m *Manager) saveLocked() error {
	if m.token == nil {
		return errors.New("google: no token to save")
	}

	if dir := filepath.Dir(m.tokenPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(m.token, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.tokenPath, data, 0600)
}
