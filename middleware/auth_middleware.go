package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/internal/auth"
	"github.com/lugautier/secure-notes/models"
	"github.com/lugautier/secure-notes/utils"
	"go.uber.org/zap"
)

// TokenValidator verifies a bearer token and returns its claims
type TokenValidator interface {
	Validate(token string) (*auth.IdentityClaims, error)
}

// TokenMetrics records token validation outcomes
type TokenMetrics interface {
	RecordTokenValidation(result string)
}

// RoleProvider returns the roles held by a user
type RoleProvider interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
}

type nopTokenMetrics struct{}

func (nopTokenMetrics) RecordTokenValidation(string) {}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	metrics   TokenMetrics
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, metrics TokenMetrics, logger *zap.Logger) *AuthMiddleware {
	if metrics == nil {
		metrics = nopTokenMetrics{}
	}
	return &AuthMiddleware{
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Authenticate attaches an Identity to the request when it carries a valid
// bearer token. It never rejects: requests without a token or with a bad one
// continue anonymously and protected routes decide with RequireAuth.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.validator.Validate(token)
		m.metrics.RecordTokenValidation(auth.TokenErrorKind(err))
		if err != nil {
			m.logger.Debug("ignoring invalid bearer token",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("reason", auth.TokenErrorKind(err)))
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithIdentity(r.Context(), &Identity{
			Subject: claims.Subject,
			Email:   claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that reached it without an identity
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentityFromContext(r.Context()) == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only identities holding role. Roles are read from the
// store on each request so revocations apply before the token expires.
func (m *AuthMiddleware) RequireRole(roles RoleProvider, role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity := GetIdentityFromContext(ctx)
			if identity == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			userID, err := identity.UserID()
			if err != nil {
				m.logger.Warn("identity subject is not a user id",
					zap.String("request_id", requestID),
					zap.String("subject", identity.Subject))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			held, err := roles.GetRoles(ctx, userID)
			if err != nil {
				m.logger.Error("failed to load roles",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}

			for _, h := range held {
				if h == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("required_role", string(role)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
