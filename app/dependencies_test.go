package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lugautier/secure-notes/config"
	"github.com/lugautier/secure-notes/repositories/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func generatePEMs(t *testing.T) (privatePEM, publicPEM string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return privatePEM, publicPEM
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	privatePEM, publicPEM := generatePEMs(t)
	return &config.Config{
		Environment: "test",
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "secure_notes_test",
			SSLMode:  "disable",
		},
		Auth: config.AuthConfig{
			PrivateKeyPEM:   privatePEM,
			PublicKeyPEM:    publicPEM,
			TokenTTL:        time.Hour,
			BcryptCost:      bcrypt.MinCost,
			SaltLength:      16,
			HashConcurrency: 2,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			MetricsEnabled: true,
		},
	}
}

func mockFactory(t *testing.T) (*postgres.RepositoryFactory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return postgres.NewRepositoryFactoryFromDB(postgres.Wrap(db, logger), logger), mock
}

func TestNewDependenciesWithFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("wires every component", func(t *testing.T) {
		factory, mock := mockFactory(t)
		deps, err := NewDependenciesWithFactory(ctx, testConfig(t), factory, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.NotNil(t, deps.DB)
		assert.NotNil(t, deps.Metrics)
		assert.NotNil(t, deps.Users)
		assert.NotNil(t, deps.Roles)
		assert.NotNil(t, deps.TxManager)
		assert.NotNil(t, deps.Credentials)
		assert.NotNil(t, deps.TokenIssuer)
		assert.NotNil(t, deps.TokenValidator)
		assert.NotNil(t, deps.AuthService)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.AuthHandler)
		assert.NotNil(t, deps.HealthHandler)
		assert.Equal(t, bcrypt.MinCost, deps.Credentials.Cost())

		mock.ExpectClose()
		require.NoError(t, deps.Close(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("issued tokens validate with the configured public key", func(t *testing.T) {
		factory, _ := mockFactory(t)
		deps, err := NewDependenciesWithFactory(ctx, testConfig(t), factory, zaptest.NewLogger(t))
		require.NoError(t, err)

		token, err := deps.TokenIssuer.Issue("user-1", "alice@example.com", time.Minute)
		require.NoError(t, err)
		claims, err := deps.TokenValidator.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.MetricsEnabled = false
		factory, _ := mockFactory(t)

		deps, err := NewDependenciesWithFactory(ctx, cfg, factory, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Nil(t, deps.Metrics)
	})

	t.Run("fails without keys", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.PrivateKeyPEM = ""
		factory, _ := mockFactory(t)

		deps, err := NewDependenciesWithFactory(ctx, cfg, factory, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize auth")
		assert.Nil(t, deps)
	})

	t.Run("fails on mismatched keys", func(t *testing.T) {
		cfg := testConfig(t)
		_, otherPublic := generatePEMs(t)
		cfg.Auth.PublicKeyPEM = otherPublic
		factory, _ := mockFactory(t)

		_, err := NewDependenciesWithFactory(ctx, cfg, factory, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "failed to initialize auth")
	})

	t.Run("fails on invalid bcrypt cost", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.BcryptCost = 99
		factory, _ := mockFactory(t)

		_, err := NewDependenciesWithFactory(ctx, cfg, factory, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "bcrypt cost")
	})

	t.Run("fails on non-positive ttl", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.TokenTTL = 0
		factory, _ := mockFactory(t)

		_, err := NewDependenciesWithFactory(ctx, cfg, factory, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "failed to initialize services")
	})
}

func TestNewDependencies_DatabaseUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Host = "invalid-host-that-does-not-exist"
	cfg.Database.ConnectionString = ""

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database")
	assert.Nil(t, deps)
}
