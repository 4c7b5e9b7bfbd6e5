package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chetan-code/supatodo/internal/auth"
	"github.com/chetan-code/supatodo/internal/models"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// Auth talks to the provider's GoTrue endpoints. It satisfies
// auth.Verifier, so the server can hand token checks to the provider.
type Auth struct {
	client *Client
	gotrue gotrue.Client
}

func NewAuth(c *Client) *Auth {
	return &Auth{
		client: c,
		gotrue: gotrue.New("", c.key).WithCustomGoTrueURL(c.endpoint("/auth/v1")),
	}
}

var _ auth.Verifier = (*Auth)(nil)

// api returns the GoTrue client for one call, bound to ctx and, when
// token is set, acting as that user.
func (a *Auth) api(ctx context.Context, token string) gotrue.Client {
	g := a.gotrue.WithClient(a.client.httpClient(ctx))
	if token != "" {
		g = g.WithToken(token)
	}
	return g
}

func toUser(u types.User) models.User {
	return models.User{
		ID:       u.ID.String(),
		Email:    u.Email,
		Metadata: u.UserMetadata,
	}
}

func (a *Auth) session(s types.Session) *models.Session {
	out := &models.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		User:         toUser(s.User),
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = a.client.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

// GetUser returns the user owning accessToken, nil when the token
// carries nobody.
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	resp, err := a.api(ctx, accessToken).GetUser()
	if err != nil {
		return nil, authError(err)
	}
	if resp.ID == uuid.Nil {
		return nil, nil
	}
	user := toUser(resp.User)
	return &user, nil
}

// Verify implements auth.Verifier. Provider 4xx answers are reported as
// auth.ErrInvalidToken; transport failures are passed through.
func (a *Auth) Verify(ctx context.Context, token string) (*models.User, error) {
	user, err := a.GetUser(ctx, token)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %s", auth.ErrInvalidToken, perr.Message)
		}
		return nil, err
	}
	return user, nil
}

func (a *Auth) token(resp *types.TokenResponse, err error) (*models.Session, error) {
	if err != nil {
		return nil, authError(err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("supabase: token grant returned no access token")
	}
	return a.session(resp.Session), nil
}

// SignInWithPassword exchanges an email and password for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return a.token(a.api(ctx, "").SignInWithEmailPassword(email, password))
}

// RefreshSession trades a refresh token for a fresh session.
func (a *Auth) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	return a.token(a.api(ctx, "").RefreshToken(refreshToken))
}

// SignUp registers a new account. The returned session is nil when the
// provider requires email confirmation before the first sign-in.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	resp, err := a.api(ctx, "").Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, nil, authError(err)
	}
	if resp.AccessToken != "" {
		s := a.session(resp.Session)
		return s, &s.User, nil
	}
	user := toUser(resp.User)
	return nil, &user, nil
}

// SignOut revokes the session behind accessToken on the provider.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	return authError(a.api(ctx, accessToken).Logout())
}
