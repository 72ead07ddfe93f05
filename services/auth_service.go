package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/models"
	"github.com/lugautier/secure-notes/repositories"
	"go.uber.org/zap"
)

// Outcome labels reported to AuthMetrics
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultAlreadyRegistered  = "already_registered"
	ResultInvalidInput       = "invalid_input"
	ResultError              = "error"
)

// PasswordHasher derives and checks salted password hashes
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(ctx context.Context, password, salt string) (string, error)
	Verify(ctx context.Context, password, salt, hash string) bool
}

// TokenIssuer signs identity tokens
type TokenIssuer interface {
	Issue(subject, email string, ttl time.Duration) (string, error)
}

// AuthMetrics receives login and registration outcomes
type AuthMetrics interface {
	RecordLogin(result string)
	RecordRegistration(result string)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) RecordLogin(string)        {}
func (nopAuthMetrics) RecordRegistration(string) {}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string
	ExpiresIn int64 // seconds
}

// Profile is a user together with its roles
type Profile struct {
	User  *models.User
	Roles []models.Role
}

// dummyPassword only feeds the credential used to equalize login timing
const dummyPassword = "timing-equalizer-not-a-real-password"

// AuthService handles registration, login and role lookup
type AuthService struct {
	users    repositories.UserRepository
	roles    repositories.RoleRepository
	txMgr    repositories.TransactionManager
	hasher   PasswordHasher
	issuer   TokenIssuer
	tokenTTL time.Duration
	metrics  AuthMetrics
	logger   *zap.Logger

	// dummySalt and dummyHash give unknown-email logins the same bcrypt work
	// as a wrong password
	dummySalt string
	dummyHash string
}

// NewAuthService creates a new AuthService instance.
// metrics may be nil.
func NewAuthService(
	users repositories.UserRepository,
	roles repositories.RoleRepository,
	txMgr repositories.TransactionManager,
	hasher PasswordHasher,
	issuer TokenIssuer,
	tokenTTL time.Duration,
	metrics AuthMetrics,
	logger *zap.Logger,
) (*AuthService, error) {
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", tokenTTL)
	}
	if metrics == nil {
		metrics = nopAuthMetrics{}
	}

	salt, err := hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy credential: %w", err)
	}
	hash, err := hasher.Hash(context.Background(), dummyPassword, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy credential: %w", err)
	}

	return &AuthService{
		users:     users,
		roles:     roles,
		txMgr:     txMgr,
		hasher:    hasher,
		issuer:    issuer,
		tokenTTL:  tokenTTL,
		metrics:   metrics,
		logger:    logger,
		dummySalt: salt,
		dummyHash: hash,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with the default USER role.
// The user row and the role assignment are written in one transaction.
func (s *AuthService) Register(ctx context.Context, email, password string) (uuid.UUID, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordRegistration(ResultInvalidInput)
		return uuid.Nil, ErrInvalidInput
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordRegistration(ResultError)
		return uuid.Nil, WrapInternal("failed to check email", err)
	}
	if exists {
		s.metrics.RecordRegistration(ResultAlreadyRegistered)
		return uuid.Nil, ErrAlreadyRegistered
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		s.metrics.RecordRegistration(ResultError)
		return uuid.Nil, WrapInternal("failed to generate salt", err)
	}
	hash, err := s.hasher.Hash(ctx, password, salt)
	if err != nil {
		s.metrics.RecordRegistration(ResultError)
		return uuid.Nil, WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(email, hash, salt)
	id, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (uuid.UUID, error) {
		if err := s.users.Create(ctx, user); err != nil {
			return uuid.Nil, err
		}
		if err := s.roles.Assign(ctx, user.ID, models.RoleUser); err != nil {
			return uuid.Nil, err
		}
		return user.ID, nil
	})
	if err != nil {
		// A concurrent registration can win between the existence check and the insert
		if errors.Is(err, repositories.ErrDuplicate) {
			s.metrics.RecordRegistration(ResultAlreadyRegistered)
			return uuid.Nil, ErrAlreadyRegistered
		}
		s.metrics.RecordRegistration(ResultError)
		return uuid.Nil, WrapInternal("failed to register user", err)
	}

	s.metrics.RecordRegistration(ResultSuccess)
	s.logger.Info("user registered", zap.String("user_id", id.String()))
	return id, nil
}

// Login verifies the password and issues a token.
// An unknown email and a wrong password return the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordLogin(ResultError)
		return nil, WrapInternal("failed to look up user", err)
	}

	if user == nil {
		s.hasher.Verify(ctx, password, s.dummySalt, s.dummyHash)
		return nil, s.loginFailed(ctx)
	}

	if !s.hasher.Verify(ctx, password, user.Salt, user.PasswordHash) {
		return nil, s.loginFailed(ctx)
	}

	token, err := s.issuer.Issue(user.ID.String(), user.Email, s.tokenTTL)
	if err != nil {
		s.metrics.RecordLogin(ResultError)
		return nil, WrapInternal("failed to issue token", err)
	}

	s.metrics.RecordLogin(ResultSuccess)
	s.logger.Debug("user logged in", zap.String("user_id", user.ID.String()))

	return &LoginResult{
		Token:     token,
		ExpiresIn: int64(s.tokenTTL / time.Second),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context) error {
	// Verify reports false when the hashing pool gave up on a cancelled request
	if err := ctx.Err(); err != nil {
		s.metrics.RecordLogin(ResultError)
		return WrapInternal("login aborted", err)
	}
	s.metrics.RecordLogin(ResultInvalidCredentials)
	return ErrInvalidCredentials
}

// GetRoles returns the distinct roles of a user in a stable order
func (s *AuthService) GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	assigned, err := s.roles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, WrapInternal("failed to load roles", err)
	}

	seen := make(map[models.Role]struct{}, len(assigned))
	roles := make([]models.Role, 0, len(assigned))
	for _, role := range assigned {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	return roles, nil
}

// GetProfile returns the user and its roles
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, WrapInternal("failed to load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	roles, err := s.GetRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{User: user, Roles: roles}, nil
}
