package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access token the provider issues. Subject carries the user id.
type Claims struct {
	Email    string         `json:"email"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
	//has standard jwt field issued at, expires at, subject, audience etc
	jwt.RegisteredClaims
}

// User builds the identity carried by the token.
func (c *Claims) User() *User {
	return &User{ID: c.Subject, Email: c.Email, Metadata: c.Metadata}
}
