package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/models"
	"github.com/lugautier/secure-notes/repositories"
	"go.uber.org/zap"
)

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// Assign grants a role to a user
func (r *RoleRepository) Assign(ctx context.Context, userID uuid.UUID, role models.Role) error {
	query := `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, userID, string(role)); err != nil {
		return fmt.Errorf("failed to assign role: %w", mapError(err))
	}

	r.logger.Debug("role assigned",
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
	)
	return nil
}

// FindByUserID lists the roles granted to a user
func (r *RoleRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	query := `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, models.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}
