package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience is the audience the provider puts on user access tokens.
const DefaultAudience = "authenticated"

// JWTVerifier checks provider-issued HS256 access tokens with the project
// JWT secret, without a round trip to the provider.
type JWTVerifier struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// NewJWTVerifier returns a verifier for tokens signed with secret. An
// empty audience disables the audience check.
func NewJWTVerifier(secret []byte, audience string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &JWTVerifier{secret: secret, audience: audience, now: time.Now}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &models.Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		//token is fine but carries nobody
		return nil, nil
	}
	return claims.User(), nil
}

// SignToken issues an access token the way the provider does. It backs
// local development and tests, the provider issues real tokens.
func SignToken(secret []byte, user models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		Email:    user.Email,
		Role:     DefaultAudience,
		Metadata: user.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	//create the token using hs256 algo and sign with the secret key
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// LooksLikeJWT reports whether s parses as a signed JWT. The signature is
// not checked; this is the syntactic test used to validate public keys.
func LooksLikeJWT(s string) bool {
	_, _, err := jwt.NewParser().ParseUnverified(s, jwt.MapClaims{})
	return err == nil
}
