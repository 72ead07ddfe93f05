package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the verified facts carried by a token
type IdentityClaims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT payload: registered claims plus the email claim
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) identity() *IdentityClaims {
	return &IdentityClaims{
		Subject:   c.Subject,
		Email:     c.Email,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}
}
