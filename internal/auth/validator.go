package auth

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed is returned when the token cannot be decoded or lacks required claims
	ErrTokenMalformed = errors.New("token is malformed")

	// ErrTokenUnsupported is returned when the header names any algorithm other than RS256
	ErrTokenUnsupported = errors.New("token algorithm is not supported")

	// ErrTokenBadSignature is returned when the signature does not verify with the public key
	ErrTokenBadSignature = errors.New("token signature is invalid")

	// ErrTokenExpired is returned when the token is past its exp claim
	ErrTokenExpired = errors.New("token has expired")
)

// TokenValidator verifies RS256 tokens using only the public key
type TokenValidator struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenValidator creates a new TokenValidator
func NewTokenValidator(key *rsa.PublicKey) (*TokenValidator, error) {
	if key == nil {
		return nil, fmt.Errorf("verification key: %w", ErrMissingKey)
	}
	if bits := key.N.BitLen(); bits < MinRSAKeyBits {
		return nil, fmt.Errorf("%w: verification key has %d bits, need %d", ErrKeyTooSmall, bits, MinRSAKeyBits)
	}

	return &TokenValidator{
		key: key,
		// Claims are checked by Validate itself so that missing claims are
		// reported before expiry.
		parser: jwt.NewParser(
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}, nil
}

// Validate verifies tokenString and returns its claims.
// Failures are one of ErrTokenMalformed, ErrTokenUnsupported,
// ErrTokenBadSignature or ErrTokenExpired.
func (v *TokenValidator) Validate(tokenString string) (*IdentityClaims, error) {
	claims := &tokenClaims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc); err != nil {
		return nil, v.classify(tokenString, err)
	}

	if claims.Subject == "" || claims.Email == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}

	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims.identity(), nil
}

// keyFunc pins the algorithm. The header is attacker controlled, so "none",
// HS256 (with the public key as HMAC secret) and other RSA variants are refused.
func (v *TokenValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method == nil || token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: %v", ErrTokenUnsupported, token.Header["alg"])
	}
	return v.key, nil
}

func (v *TokenValidator) classify(tokenString string, err error) error {
	switch {
	case errors.Is(err, ErrTokenUnsupported), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenUnsupported
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return v.classifyUndecodable(tokenString)
	default:
		return ErrTokenMalformed
	}
}

// classifyUndecodable handles tokens the parser could not decode. When the
// header and payload are intact only the signature segment is corrupt, which
// counts as a bad signature. The parser's own unverified path is not used
// since it also decodes the signature.
func (v *TokenValidator) classifyUndecodable(tokenString string) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return ErrTokenMalformed
	}

	headerJSON, err := v.parser.DecodeSegment(parts[0])
	if err != nil {
		return ErrTokenMalformed
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return ErrTokenMalformed
	}

	payloadJSON, err := v.parser.DecodeSegment(parts[1])
	if err != nil {
		return ErrTokenMalformed
	}
	if err := json.Unmarshal(payloadJSON, &tokenClaims{}); err != nil {
		return ErrTokenMalformed
	}

	if header.Alg != jwt.SigningMethodRS256.Alg() {
		return ErrTokenUnsupported
	}
	return ErrTokenBadSignature
}

// TokenErrorKind returns a short label for a Validate error, for logs and metrics
func TokenErrorKind(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenUnsupported):
		return "unsupported"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "unknown"
	}
}
