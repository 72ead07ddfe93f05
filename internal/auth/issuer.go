package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidTTL is returned when a token lifetime is shorter than one second
var ErrInvalidTTL = errors.New("token ttl must be at least one second")

// TokenIssuer signs RS256 tokens with the deployment private key
type TokenIssuer struct {
	key *rsa.PrivateKey
	now func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer.
// The key is checked here so a bad key fails at startup, not on the first login.
func NewTokenIssuer(key *rsa.PrivateKey) (*TokenIssuer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key: %w", ErrMissingKey)
	}
	if bits := key.N.BitLen(); bits < MinRSAKeyBits {
		return nil, fmt.Errorf("%w: signing key has %d bits, need %d", ErrKeyTooSmall, bits, MinRSAKeyBits)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	return &TokenIssuer{
		key: key,
		now: time.Now,
	}, nil
}

// Issue returns a compact token for subject and email valid for ttl.
// Every token carries a random jti, so two tokens issued within the same second still differ.
func (i *TokenIssuer) Issue(subject, email string, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", ErrInvalidTTL
	}

	now := i.now()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
