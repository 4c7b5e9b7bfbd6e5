// Package auth defines how the API server turns a bearer token into a
// user identity. The server never trusts identity data sent by a client:
// every request is verified again through a Verifier, either by asking
// the identity provider (supabase.Auth) or by checking the provider's
// token signature locally (JWTVerifier).
package auth

import (
	"context"
	"errors"

	"github.com/chetan-code/supatodo/internal/models"
)

// ErrInvalidToken is returned by verifiers when a token is rejected.
// Verifiers wrap it with the underlying reason.
var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a bearer token to the user it belongs to. A nil
// user with a nil error is treated by callers as an unknown user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*models.User, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*models.User, error) {
	return f(ctx, token)
}

// Identity is the authenticated caller of a request. Token is kept so
// stores backed by the provider can forward it and let row-level
// security apply as well.
type Identity struct {
	User  models.User
	Token string
}
