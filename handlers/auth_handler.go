package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/middleware"
	"github.com/lugautier/secure-notes/models"
	"github.com/lugautier/secure-notes/services"
	"github.com/lugautier/secure-notes/utils"
	"go.uber.org/zap"
)

// AuthService is the subset of services.AuthService used by AuthHandler
type AuthService interface {
	Register(ctx context.Context, email, password string) (uuid.UUID, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*services.Profile, error)
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

// RegisterResponse is returned after a successful registration
type RegisterResponse struct {
	UserID  uuid.UUID `json:"userId"`
	Email   string    `json:"email"`
	Message string    `json:"message"`
}

// LoginRequest is the body of POST /auth/login.
// The password policy is not checked here so that accounts created under an
// older policy can still sign in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResponse carries the bearer token and its lifetime in seconds
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// ProfileResponse describes the authenticated user
type ProfileResponse struct {
	ID        uuid.UUID     `json:"id"`
	Email     string        `json:"email"`
	Roles     []models.Role `json:"roles"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// AuthHandler handles registration, login and profile requests
type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to parse register request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	req.Email = services.NormalizeEmail(req.Email)
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	userID, err := h.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, RegisterResponse{
		UserID:  userID,
		Email:   req.Email,
		Message: "User registered successfully",
	}); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	req.Email = services.NormalizeEmail(req.Email)
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, LoginResponse{
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	}); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleProfile handles GET /auth/profile. It must be mounted behind RequireAuth.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.GetIdentityFromContext(ctx)
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	userID, err := identity.UserID()
	if err != nil {
		h.logger.Warn("identity subject is not a user id",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("subject", identity.Subject))
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	h.writeProfile(w, r, userID)
}

// HandleUserProfile handles GET /admin/users/{id}. It must be mounted behind
// RequireRole(ADMIN).
func (h *AuthHandler) HandleUserProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "invalid user id", nil)
		return
	}

	h.writeProfile(w, r, userID)
}

func (h *AuthHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ProfileResponse{
		ID:        profile.User.ID,
		Email:     profile.User.Email,
		Roles:     profile.Roles,
		CreatedAt: profile.User.CreatedAt,
		UpdatedAt: profile.User.UpdatedAt,
	}); err != nil {
		h.logger.Error("failed to write profile response", zap.Error(err))
	}
}
