package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/lugautier/secure-notes/config"
	"github.com/lugautier/secure-notes/handlers"
	"github.com/lugautier/secure-notes/internal/auth"
	"github.com/lugautier/secure-notes/internal/observability"
	"github.com/lugautier/secure-notes/middleware"
	"github.com/lugautier/secure-notes/repositories"
	"github.com/lugautier/secure-notes/repositories/postgres"
	"github.com/lugautier/secure-notes/services"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	Roles     repositories.RoleRepository
	TxManager repositories.TransactionManager

	// Auth core
	Credentials    *auth.CredentialManager
	TokenIssuer    *auth.TokenIssuer
	TokenValidator *auth.TokenValidator
	AuthService    *services.AuthService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires the application over an existing repository factory
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	if err := deps.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	// Key problems are fatal so a misconfigured node never serves traffic
	if err := deps.initAuth(); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initSchema applies pending migrations when auto-migration is enabled
func (d *Dependencies) initSchema(ctx context.Context) error {
	if !d.Config.Database.AutoMigrate {
		d.Logger.Info("automatic migrations disabled")
		return nil
	}
	return d.DB.RunMigrations(ctx)
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Roles = repos.Roles
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initAuth loads the signing keys and builds the credential and token components
func (d *Dependencies) initAuth() error {
	cfg := d.Config.Auth

	privatePEM, err := cfg.PrivateKey()
	if err != nil {
		return err
	}
	publicPEM, err := cfg.PublicKey()
	if err != nil {
		return err
	}

	keys, err := auth.LoadKeyPair(privatePEM, publicPEM)
	if err != nil {
		return err
	}

	if d.TokenIssuer, err = auth.NewTokenIssuer(keys.Private); err != nil {
		return err
	}
	if d.TokenValidator, err = auth.NewTokenValidator(keys.Public); err != nil {
		return err
	}

	d.Credentials, err = auth.NewCredentialManager(auth.CredentialConfig{
		Cost:        cfg.BcryptCost,
		SaltLength:  cfg.SaltLength,
		Concurrency: cfg.HashConcurrency,
	}, d.Metrics)
	if err != nil {
		return err
	}

	d.Logger.Info("auth initialized",
		zap.Int("bcrypt_cost", d.Credentials.Cost()),
		zap.Duration("token_ttl", cfg.TokenTTL),
		zap.Int("key_bits", keys.Public.N.BitLen()))
	return nil
}

// initServices builds the authentication service and its HTTP surface
func (d *Dependencies) initServices() error {
	service, err := services.NewAuthService(
		d.Users,
		d.Roles,
		d.TxManager,
		d.Credentials,
		d.TokenIssuer,
		d.Config.Auth.TokenTTL,
		d.Metrics,
		d.Logger,
	)
	if err != nil {
		return err
	}

	d.AuthService = service
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenValidator, d.Metrics, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(service, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Logger)

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
