// Package auth manages the OAuth2 session for the configured Google
// account: the code exchange, proactive access token refresh, and
// token persistence.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notemirror/notemirror/internal/model"
	"github.com/notemirror/notemirror/internal/remote"
	"github.com/notemirror/notemirror/internal/store"
	"golang.org/x/oauth2"
)

// DefaultRefreshWindow is how close to expiry an access token may get
// before the session refreshes it ahead of use.
const DefaultRefreshWindow = 5 * time.Minute

// ErrNoRefreshToken is returned when an operation needs credentials
// the session does not hold.
var ErrNoRefreshToken = errors.New("no refresh token")

// Session holds the OAuth state for one account. Every change to the
// token is persisted before it becomes observable, so a crash never
// strands a refreshed token in memory only.
type Session struct {
	config *oauth2.Config
	tokens store.TokenStore

	// AuthChanged, when set, is called after the authentication state
	// flips: true after a successful connect, false after logout.
	AuthChanged func(authenticated bool)

	refreshWindow time.Duration

	mu      sync.Mutex
	token   *model.Token
	account *Account
}

// NewSession creates a Session. Call Load to pick up a persisted token.
func NewSession(config *oauth2.Config, tokens store.TokenStore) *Session {
	return &Session{
		config:        config,
		tokens:        tokens,
		refreshWindow: DefaultRefreshWindow,
	}
}

// Load restores a previously persisted token. A missing token is not
// an error; the session just starts unauthenticated.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.tokens.Load(ctx)
	if errors.Is(err, store.ErrNoToken) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// AuthURL returns the URL to send the user to for Google consent.
func (s *Session) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Connect exchanges the authorization code for tokens. On success the
// token is persisted and AuthChanged(true) fires; on failure the
// session is left exactly as it was.
func (s *Session) Connect(ctx context.Context, authCode string) error {
	tok, err := s.config.Exchange(ctx, authCode)
	if err != nil {
		return &remote.AuthError{Op: "exchange", Err: err}
	}

	account := accountFromToken(tok)

	s.mu.Lock()
	s.absorbLocked(tok)
	if account != nil {
		s.account = account
	}
	if err := s.tokens.Save(ctx, s.token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("unable to persist token: %w", err)
	}
	s.mu.Unlock()

	s.emitAuthChanged(true)
	return nil
}

// IsAuthenticated reports whether the session holds credentials.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.token.Empty()
}

// Account returns the identity from the last connect, nil when unknown.
func (s *Session) Account() *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	acct := *s.account
	return &acct
}

// Logout drops the session's credentials and fires AuthChanged(false).
// The persisted token is removed before memory is cleared, so a
// failing removal is reported while the on-disk state is still whole.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	err := s.tokens.Clear(ctx)
	s.token = nil
	s.account = nil
	s.mu.Unlock()

	s.emitAuthChanged(false)
	if err != nil {
		return fmt.Errorf("unable to clear persisted token: %w", err)
	}
	return nil
}

// Token returns a valid access token, refreshing first when the
// current one expires within the refresh window. Refreshes are
// serialized; concurrent callers wait for one refresh and share its
// result.
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.token.Empty() {
		s.mu.Unlock()
		return nil, &remote.AuthError{Op: "token", Err: ErrNoRefreshToken}
	}
	if s.token.AccessToken != "" && time.Until(s.token.Expiry) > s.refreshWindow {
		tok := oauthToken(s.token)
		s.mu.Unlock()
		return tok, nil
	}

	tok, err := s.refreshLocked(ctx)
	s.mu.Unlock()

	if err != nil && remote.IsAuthError(err) {
		s.emitAuthChanged(false)
	}
	return tok, err
}

// ForceRefresh discards the current access token and refreshes
// immediately, regardless of its remaining lifetime.
func (s *Session) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	if s.token.Empty() {
		s.mu.Unlock()
		return &remote.AuthError{Op: "refresh", Err: ErrNoRefreshToken}
	}
	s.token.AccessToken = ""
	_, err := s.refreshLocked(ctx)
	s.mu.Unlock()

	if err != nil && remote.IsAuthError(err) {
		s.emitAuthChanged(false)
	}
	return err
}

// TokenSource adapts the session for clients that pull tokens at
// dispatch time.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, session: s}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (t *sessionTokenSource) Token() (*oauth2.Token, error) {
	return t.session.Token(t.ctx)
}

// refreshLocked exchanges the refresh token for a new access token and
// persists the result before returning it. Callers hold s.mu.
func (s *Session) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	base := &oauth2.Token{
		RefreshToken: s.token.RefreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour), // Force refresh
	}

	fresh, err := s.config.TokenSource(ctx, base).Token()
	if err != nil {
		return nil, &remote.AuthError{Op: "refresh", Err: err}
	}

	s.absorbLocked(fresh)
	if err := s.tokens.Save(ctx, s.token); err != nil {
		return nil, fmt.Errorf("unable to persist refreshed token: %w", err)
	}
	return oauthToken(s.token), nil
}

// absorbLocked merges a token response into the session. Google omits
// the refresh token on repeat consents, so an empty one keeps the
// current value. Callers hold s.mu.
func (s *Session) absorbLocked(tok *oauth2.Token) {
	next := &model.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if next.RefreshToken == "" && !s.token.Empty() {
		next.RefreshToken = s.token.RefreshToken
	}
	s.token = next
}

func (s *Session) emitAuthChanged(authenticated bool) {
	if s.AuthChanged != nil {
		s.AuthChanged(authenticated)
	}
}

func oauthToken(t *model.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		TokenType:    "Bearer",
	}
}
