package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lugautier/secure-notes/internal/auth"
	"github.com/lugautier/secure-notes/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) Validate(token string) (*auth.IdentityClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.IdentityClaims), args.Error(1)
}

type MockRoleProvider struct {
	mock.Mock
}

func (m *MockRoleProvider) GetRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Role), args.Error(1)
}

type recordingMetrics struct {
	results []string
}

func (r *recordingMetrics) RecordTokenValidation(result string) {
	r.results = append(r.results, result)
}

// captureIdentity records the identity each request reached the handler with
func captureIdentity(seen *[]*Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = append(*seen, GetIdentityFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func aliceClaims() *auth.IdentityClaims {
	now := time.Now()
	return &auth.IdentityClaims{
		Subject:   uuid.NewString(),
		Email:     "alice@example.com",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestAuthenticate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token attaches identity", func(t *testing.T) {
		validator := new(MockTokenValidator)
		metrics := &recordingMetrics{}
		claims := aliceClaims()
		validator.On("Validate", "valid-token").Return(claims, nil)

		var seen []*Identity
		handler := NewAuthMiddleware(validator, metrics, logger).Authenticate(captureIdentity(&seen))

		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, seen, 1)
		require.NotNil(t, seen[0])
		assert.Equal(t, claims.Subject, seen[0].Subject)
		assert.Equal(t, "alice@example.com", seen[0].Email)
		assert.Equal(t, []string{"valid"}, metrics.results)
		validator.AssertExpectations(t)
	})

	t.Run("invalid tokens continue anonymously", func(t *testing.T) {
		for _, tokenErr := range []error{
			auth.ErrTokenMalformed,
			auth.ErrTokenUnsupported,
			auth.ErrTokenBadSignature,
			auth.ErrTokenExpired,
		} {
			validator := new(MockTokenValidator)
			metrics := &recordingMetrics{}
			validator.On("Validate", "bad-token").Return(nil, tokenErr)

			var seen []*Identity
			handler := NewAuthMiddleware(validator, metrics, logger).Authenticate(captureIdentity(&seen))

			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			req.Header.Set("Authorization", "Bearer bad-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, tokenErr.Error())
			require.Len(t, seen, 1)
			assert.Nil(t, seen[0], tokenErr.Error())
			assert.Equal(t, []string{auth.TokenErrorKind(tokenErr)}, metrics.results)
		}
	})

	t.Run("header formats", func(t *testing.T) {
		tests := []struct {
			name      string
			header    string
			wantToken string
		}{
			{name: "no header"},
			{name: "bearer lowercase", header: "bearer valid-token", wantToken: "valid-token"},
			{name: "bearer uppercase", header: "BEARER valid-token", wantToken: "valid-token"},
			{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
			{name: "scheme only", header: "Bearer"},
			{name: "raw token without scheme", header: "valid-token"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				validator := new(MockTokenValidator)
				if tt.wantToken != "" {
					validator.On("Validate", tt.wantToken).Return(aliceClaims(), nil)
				}

				var seen []*Identity
				handler := NewAuthMiddleware(validator, nil, logger).Authenticate(captureIdentity(&seen))

				req := httptest.NewRequest(http.MethodGet, "/", nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				handler.ServeHTTP(httptest.NewRecorder(), req)

				require.Len(t, seen, 1)
				if tt.wantToken == "" {
					assert.Nil(t, seen[0])
					validator.AssertNotCalled(t, "Validate", mock.Anything)
				} else {
					assert.NotNil(t, seen[0])
				}
				validator.AssertExpectations(t)
			})
		}
	})

	t.Run("identity does not leak across requests", func(t *testing.T) {
		validator := new(MockTokenValidator)
		validator.On("Validate", "valid-token").Return(aliceClaims(), nil)

		var seen []*Identity
		handler := NewAuthMiddleware(validator, nil, logger).Authenticate(captureIdentity(&seen))

		authed := httptest.NewRequest(http.MethodGet, "/", nil)
		authed.Header.Set("Authorization", "Bearer valid-token")
		handler.ServeHTTP(httptest.NewRecorder(), authed)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.Len(t, seen, 2)
		assert.NotNil(t, seen[0])
		assert.Nil(t, seen[1])
	})
}

func TestAuthenticate_RealValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer, err := auth.NewTokenIssuer(key)
	require.NoError(t, err)
	validator, err := auth.NewTokenValidator(&key.PublicKey)
	require.NoError(t, err)

	subject := uuid.NewString()
	token, err := issuer.Issue(subject, "alice@example.com", time.Hour)
	require.NoError(t, err)

	// HS256 signed with the public key modulus as the shared secret
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": "alice@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	forgedToken, err := forged.SignedString(key.PublicKey.N.Bytes())
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		wantSubject string
	}{
		{name: "issued token", token: token, wantSubject: subject},
		{name: "algorithm confusion", token: forgedToken},
		{name: "tampered token", token: token + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []*Identity
			handler := NewAuthMiddleware(validator, nil, zap.NewNop()).Authenticate(captureIdentity(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			require.Len(t, seen, 1)
			if tt.wantSubject == "" {
				assert.Nil(t, seen[0])
				return
			}
			require.NotNil(t, seen[0])
			assert.Equal(t, tt.wantSubject, seen[0].Subject)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(new(MockTokenValidator), nil, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("anonymous request is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		m.RequireAuth(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authentication required")
	})

	t.Run("identity passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		req = req.WithContext(WithIdentity(req.Context(), &Identity{Subject: "s", Email: "e"}))
		w := httptest.NewRecorder()
		m.RequireAuth(ok).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(new(MockTokenValidator), nil, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	userID := uuid.New()

	withIdentity := func(subject string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		return req.WithContext(WithIdentity(req.Context(), &Identity{Subject: subject, Email: "a@b.io"}))
	}

	tests := []struct {
		name       string
		req        *http.Request
		roles      []models.Role
		rolesErr   error
		expectCall bool
		wantStatus int
	}{
		{
			name:       "anonymous",
			req:        httptest.NewRequest(http.MethodGet, "/admin", nil),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject is not a uuid",
			req:        withIdentity("not-a-uuid"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "role held",
			req:        withIdentity(userID.String()),
			roles:      []models.Role{models.RoleAdmin, models.RoleUser},
			expectCall: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "role missing",
			req:        withIdentity(userID.String()),
			roles:      []models.Role{models.RoleUser},
			expectCall: true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "role lookup fails",
			req:        withIdentity(userID.String()),
			rolesErr:   assert.AnError,
			expectCall: true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(MockRoleProvider)
			if tt.expectCall {
				if tt.rolesErr != nil {
					provider.On("GetRoles", mock.Anything, userID).Return(nil, tt.rolesErr)
				} else {
					provider.On("GetRoles", mock.Anything, userID).Return(tt.roles, nil)
				}
			}

			w := httptest.NewRecorder()
			m.RequireRole(provider, models.RoleAdmin)(ok).ServeHTTP(w, tt.req)

			assert.Equal(t, tt.wantStatus, w.Code)
			provider.AssertExpectations(t)
		})
	}
}
