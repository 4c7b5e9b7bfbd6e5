package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
)

type fakeProvider struct {
	signInErr  error
	refreshErr error
	signOutErr error
	noSession  bool

	refreshes int
	signOuts  int
	expiresAt time.Time
}

func (p *fakeProvider) session(access string) *models.Session {
	return &models.Session{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    "bearer",
		ExpiresAt:    p.expiresAt,
		User:         models.User{ID: "user-a", Email: "a@example.com"},
	}
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return p.session("access-1"), nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user := &models.User{ID: "user-a", Email: email}
	if p.noSession {
		return nil, user, nil
	}
	return p.session("access-1"), user, nil
}

func (p *fakeProvider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	p.refreshes++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.session("access-2"), nil
}

func (p *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	p.signOuts++
	return p.signOutErr
}

func TestRequireRemembersLocation(t *testing.T) {
	storage := &MemoryStorage{}
	m := NewSessionManager(&fakeProvider{}, storage)

	if _, err := m.Require("list --filter completed"); !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("Require err = %v", err)
	}
	returnTo, err := m.SignIn(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if returnTo != "list --filter completed" {
		t.Fatalf("returnTo = %q", returnTo)
	}

	saved, _ := storage.Load()
	if saved.ReturnTo != "" {
		t.Fatalf("return location not consumed: %q", saved.ReturnTo)
	}
	if s, err := m.Require("list"); err != nil || s.AccessToken != "access-1" {
		t.Fatalf("Require after sign in = %+v, %v", s, err)
	}
}

func TestSignInFailureKeepsSignedOut(t *testing.T) {
	m := NewSessionManager(&fakeProvider{signInErr: errors.New("Invalid login credentials")}, &MemoryStorage{})

	_, err := m.SignIn(context.Background(), "a@example.com", "wrong")
	if err == nil || err.Error() != "Invalid login credentials" {
		t.Fatalf("err = %v", err)
	}
	if m.Current() != nil {
		t.Fatal("session set after failed sign in")
	}
}

func TestRestoreRehydratesSession(t *testing.T) {
	storage := &MemoryStorage{}
	first := NewSessionManager(&fakeProvider{}, storage)
	if _, err := first.SignIn(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	second := NewSessionManager(&fakeProvider{}, storage)
	if err := second.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	s := second.Current()
	if s == nil || s.User.ID != "user-a" {
		t.Fatalf("Current = %+v", s)
	}
}

func TestSignUpPendingConfirmation(t *testing.T) {
	m := NewSessionManager(&fakeProvider{noSession: true}, &MemoryStorage{})

	res, err := m.SignUp(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !res.PendingConfirmation || res.User.Email != "new@example.com" {
		t.Fatalf("result = %+v", res)
	}
	if m.Current() != nil {
		t.Fatal("session set while confirmation is pending")
	}
}

func TestSignUpAutoConfirmed(t *testing.T) {
	m := NewSessionManager(&fakeProvider{}, &MemoryStorage{})

	res, err := m.SignUp(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.PendingConfirmation || m.Current() == nil {
		t.Fatalf("result = %+v, current = %+v", res, m.Current())
	}
}

func TestSignOutClearsEvenWhenProviderFails(t *testing.T) {
	p := &fakeProvider{signOutErr: errors.New("network down")}
	storage := &MemoryStorage{}
	m := NewSessionManager(p, storage)
	m.SignIn(context.Background(), "a@example.com", "pw")

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if p.signOuts != 1 {
		t.Fatalf("provider sign outs = %d", p.signOuts)
	}
	if m.Current() != nil {
		t.Fatal("session still set")
	}
	if saved, _ := storage.Load(); saved.Session != nil {
		t.Fatal("session still stored")
	}
}

func TestTokenSourceUsesFreshToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := &fakeProvider{expiresAt: now.Add(time.Hour)}
	m := NewSessionManager(p, &MemoryStorage{})
	m.now = func() time.Time { return now }
	m.SignIn(context.Background(), "a@example.com", "pw")

	tok, err := m.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "access-1" || p.refreshes != 0 {
		t.Fatalf("token = %q, refreshes = %d", tok.AccessToken, p.refreshes)
	}
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := &fakeProvider{expiresAt: now.Add(30 * time.Second)}
	storage := &MemoryStorage{}
	m := NewSessionManager(p, storage)
	m.now = func() time.Time { return now }
	m.SignIn(context.Background(), "a@example.com", "pw")
	p.expiresAt = now.Add(time.Hour)

	tok, err := m.token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "access-2" || p.refreshes != 1 {
		t.Fatalf("token = %q, refreshes = %d", tok.AccessToken, p.refreshes)
	}
	if saved, _ := storage.Load(); saved.Session.AccessToken != "access-2" {
		t.Fatalf("stored token = %q", saved.Session.AccessToken)
	}
}

func TestTokenSourceRefreshFailureSignsOut(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := &fakeProvider{expiresAt: now.Add(-time.Minute), refreshErr: errors.New("Invalid Refresh Token")}
	m := NewSessionManager(p, &MemoryStorage{})
	m.now = func() time.Time { return now }
	m.SignIn(context.Background(), "a@example.com", "pw")

	_, err := m.token(context.Background())
	if !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("err = %v, want ErrSignInRequired", err)
	}
	if m.Current() != nil {
		t.Fatal("session kept after failed refresh")
	}
}
