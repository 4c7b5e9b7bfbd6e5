package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"golang.org/x/oauth2"
)

// refreshWindow is how long before expiry an access token is refreshed.
const refreshWindow = 60 * time.Second

// ErrSignInRequired is returned when an operation needs a session and
// there is none (or it could not be refreshed).
var ErrSignInRequired = errors.New("sign in required")

// Provider is the identity provider as the session manager uses it.
// supabase.Auth implements it.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SavedState is what survives between runs: the session and the
// location a guarded view asked for before sign-in.
type SavedState struct {
	Session  *models.Session `json:"session,omitempty"`
	ReturnTo string          `json:"return_to,omitempty"`
}

// SessionStorage persists SavedState. Load on empty storage returns a
// zero state and no error.
type SessionStorage interface {
	Load() (SavedState, error)
	Save(SavedState) error
	Clear() error
}

// SignUpResult tells the caller whether the account can be used yet.
type SignUpResult struct {
	User                models.User
	PendingConfirmation bool
}

// SessionManager owns the signed-in session for the lifetime of the
// application. It is created once at startup, rehydrated with Restore,
// and passed to whatever needs the current user.
type SessionManager struct {
	provider Provider
	storage  SessionStorage
	now      func() time.Time

	mu    sync.Mutex
	state SavedState
}

func NewSessionManager(p Provider, s SessionStorage) *SessionManager {
	return &SessionManager{provider: p, storage: s, now: time.Now}
}

// Restore loads the persisted session. A saved session without an
// access token is dropped.
func (m *SessionManager) Restore() error {
	state, err := m.storage.Load()
	if err != nil {
		return fmt.Errorf("client: restoring session: %w", err)
	}
	if state.Session != nil && state.Session.AccessToken == "" {
		state.Session = nil
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the session, nil when signed out.
func (m *SessionManager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session == nil {
		return nil
	}
	s := *m.state.Session
	return &s
}

// Require is the guard for views that need a session. Without one it
// remembers location, so SignIn can send the user back there, and
// returns ErrSignInRequired.
func (m *SessionManager) Require(location string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session != nil {
		s := *m.state.Session
		return &s, nil
	}
	m.state.ReturnTo = location
	if err := m.storage.Save(m.state); err != nil {
		return nil, fmt.Errorf("client: saving return location: %w", err)
	}
	return nil, ErrSignInRequired
}

// SignIn signs in with email and password and returns the location
// remembered by Require, if any. The remembered location is consumed.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (string, error) {
	session, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	returnTo := m.state.ReturnTo
	next := SavedState{Session: session}
	if err := m.storage.Save(next); err != nil {
		return "", fmt.Errorf("client: saving session: %w", err)
	}
	m.state = next
	slog.Debug("session_signed_in", "user_id", session.User.ID)
	return returnTo, nil
}

// SignUp registers an account. Projects that auto-confirm return a
// session straight away, which is kept; otherwise the account waits for
// email confirmation.
func (m *SessionManager) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	session, user, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return SignUpResult{}, err
	}
	result := SignUpResult{PendingConfirmation: session == nil}
	if user != nil {
		result.User = *user
	}
	if session == nil {
		return result, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Session = session
	if err := m.storage.Save(m.state); err != nil {
		return result, fmt.Errorf("client: saving session: %w", err)
	}
	return result, nil
}

// SignOut revokes the session with the provider and always forgets it
// locally, even when the provider call fails.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session != nil {
		if err := m.provider.SignOut(ctx, m.state.Session.AccessToken); err != nil {
			slog.Warn("session_remote_sign_out_failed", "error", err)
		}
	}
	m.state = SavedState{}
	return m.storage.Clear()
}

// TokenSource returns a source of access tokens for API calls. Tokens
// are refreshed with the refresh token shortly before they expire and
// the refreshed session is persisted.
func (m *SessionManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, &sessionTokenSource{ctx: ctx, m: m}, refreshWindow)
}

type sessionTokenSource struct {
	ctx context.Context
	m   *SessionManager
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	return s.m.token(s.ctx)
}

func (m *SessionManager) token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.state.Session
	if session == nil {
		return nil, ErrSignInRequired
	}
	if session.ExpiresAt.IsZero() || m.now().Add(refreshWindow).Before(session.ExpiresAt) {
		return oauthToken(session), nil
	}
	if session.RefreshToken == "" {
		return nil, fmt.Errorf("%w: session expired", ErrSignInRequired)
	}

	refreshed, err := m.provider.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		slog.Warn("session_refresh_failed", "error", err)
		m.state.Session = nil
		if clearErr := m.storage.Save(m.state); clearErr != nil {
			slog.Warn("session_clear_failed", "error", clearErr)
		}
		return nil, fmt.Errorf("%w: refreshing session: %v", ErrSignInRequired, err)
	}
	m.state.Session = refreshed
	if err := m.storage.Save(m.state); err != nil {
		return nil, fmt.Errorf("client: saving refreshed session: %w", err)
	}
	slog.Debug("session_refreshed", "user_id", refreshed.User.ID)
	return oauthToken(refreshed), nil
}

func oauthToken(s *models.Session) *oauth2.Token {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    tokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}
