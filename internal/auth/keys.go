package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinRSAKeyBits is the smallest RSA modulus accepted for signing or verification
const MinRSAKeyBits = 2048

var (
	// ErrKeyTooSmall is returned when an RSA key is shorter than MinRSAKeyBits
	ErrKeyTooSmall = errors.New("rsa key is too small")

	// ErrKeyMismatch is returned when the public key does not belong to the private key
	ErrKeyMismatch = errors.New("public key does not match private key")

	// ErrMissingKey is returned when key material is empty
	ErrMissingKey = errors.New("key material is missing")
)

// KeyPair holds the deployment signing key and its verification key.
// Both are immutable after loading and safe to share between goroutines.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// ParsePrivateKey decodes a PEM encoded RSA private key (PKCS#1 or PKCS#8)
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	if len(pemBytes) == 0 {
		return nil, fmt.Errorf("private key: %w", ErrMissingKey)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	if bits := key.N.BitLen(); bits < MinRSAKeyBits {
		return nil, fmt.Errorf("%w: private key has %d bits, need %d", ErrKeyTooSmall, bits, MinRSAKeyBits)
	}

	return key, nil
}

// ParsePublicKey decodes a PEM encoded RSA public key (PKIX, PKCS#1 or certificate)
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	if len(pemBytes) == 0 {
		return nil, fmt.Errorf("public key: %w", ErrMissingKey)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	if bits := key.N.BitLen(); bits < MinRSAKeyBits {
		return nil, fmt.Errorf("%w: public key has %d bits, need %d", ErrKeyTooSmall, bits, MinRSAKeyBits)
	}

	return key, nil
}

// LoadKeyPair parses both keys and checks that they belong together
func LoadKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	private, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	public, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}

	if !private.PublicKey.Equal(public) {
		return nil, ErrKeyMismatch
	}

	return &KeyPair{Private: private, Public: public}, nil
}
