package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultSaltLength is the number of random bytes in a generated salt
	DefaultSaltLength = 16

	// MinSaltLength is the smallest salt length accepted by NewCredentialManager
	MinSaltLength = 16

	// DefaultBcryptCost is the work factor used when none is configured
	DefaultBcryptCost = bcrypt.DefaultCost
)

// HashObserver receives the duration of each password hashing operation
type HashObserver interface {
	ObservePasswordHash(operation string, duration time.Duration)
}

// CredentialConfig configures a CredentialManager
type CredentialConfig struct {
	Cost        int // bcrypt work factor
	SaltLength  int // random salt bytes
	Concurrency int // maximum hashing operations running at once
}

// CredentialManager generates salts and computes/verifies slow password hashes.
// Hashing runs through a bounded pool so bursts of logins cannot occupy every CPU.
type CredentialManager struct {
	cost       int
	saltLength int
	pool       *semaphore.Weighted
	observer   HashObserver
}

// NewCredentialManager creates a new CredentialManager.
// observer may be nil.
func NewCredentialManager(cfg CredentialConfig, observer HashObserver) (*CredentialManager, error) {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultBcryptCost
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = DefaultSaltLength
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = runtime.NumCPU()
	}

	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Cost)
	}
	if cfg.SaltLength < MinSaltLength {
		return nil, fmt.Errorf("salt length must be at least %d bytes, got %d", MinSaltLength, cfg.SaltLength)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("hash concurrency must be positive, got %d", cfg.Concurrency)
	}

	return &CredentialManager{
		cost:       cfg.Cost,
		saltLength: cfg.SaltLength,
		pool:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		observer:   observer,
	}, nil
}

// GenerateSalt returns a base64 encoded salt read from crypto/rand
func (m *CredentialManager) GenerateSalt() (string, error) {
	salt := make([]byte, m.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// Hash computes bcrypt(password ∥ salt). The result carries the bcrypt
// version and cost, so hashes stay verifiable after the cost is changed.
func (m *CredentialManager) Hash(ctx context.Context, password, salt string) (string, error) {
	if err := m.pool.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer m.pool.Release(1)

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword(saltedInput(password, salt), m.cost)
	m.observe("hash", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether password and salt produce hash.
// Every failure, including a malformed hash or a cancelled context, is false.
func (m *CredentialManager) Verify(ctx context.Context, password, salt, hash string) bool {
	if err := m.pool.Acquire(ctx, 1); err != nil {
		return false
	}
	defer m.pool.Release(1)

	start := time.Now()
	// CompareHashAndPassword compares the derived keys with subtle.ConstantTimeCompare
	err := bcrypt.CompareHashAndPassword([]byte(hash), saltedInput(password, salt))
	m.observe("verify", time.Since(start))

	return err == nil
}

// Cost returns the configured bcrypt work factor
func (m *CredentialManager) Cost() int {
	return m.cost
}

func (m *CredentialManager) observe(operation string, d time.Duration) {
	if m.observer != nil {
		m.observer.ObservePasswordHash(operation, d)
	}
}

// saltedInput condenses password ∥ salt to a fixed 44 byte value.
// bcrypt only reads 72 bytes of input; a 128 character password plus its salt would not fit.
func saltedInput(password, salt string) []byte {
	sum := sha256.Sum256([]byte(password + salt))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
