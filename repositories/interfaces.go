package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context carrying the transaction.
	// Repositories called with it run their statements inside the transaction.
	Context() context.Context
}

// UserRepository handles user data operations.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	// Create inserts a new user. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *models.User) error

	// FindByID retrieves a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// FindByEmail retrieves a user by normalized email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// ExistsByEmail reports whether an account uses email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// RoleRepository handles role assignments
type RoleRepository interface {
	// Assign grants role to a user. Assigning a role twice returns ErrDuplicate.
	Assign(ctx context.Context, userID uuid.UUID, role models.Role) error

	// FindByUserID lists the roles granted to a user
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users UserRepository
	Roles RoleRepository
}
