package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/http/middlewarectx"
	"github.com/codescribe-ai/trial-engine/internal/lib/jwt"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// MakerMock реализует интерфейс middlewarectx.TokenParser
type MakerMock struct {
	mock.Mock
}

func (m *MakerMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	claims, _ := args.Get(0).(*jwt.CustomClaims)
	return claims, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	claims := &jwt.CustomClaims{Username: "admin", Role: models.RoleAdmin, UserUID: "uid-1"}

	tests := []struct {
		name           string
		authHeader     string
		mockClaims     *jwt.CustomClaims
		mockErr        error
		wantStatusCode int
		wantNextCalled bool
	}{
		{
			name:           "валидный токен пропускается с контекстом",
			authHeader:     "Bearer good-token",
			mockClaims:     claims,
			wantStatusCode: http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "нет заголовка Authorization",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "заголовок без префикса Bearer",
			authHeader:     "Token abc",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "просроченный токен",
			authHeader:     "Bearer expired",
			mockErr:        errors.New("token is expired"),
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maker := new(MakerMock)
			if tt.authHeader != "" && tt.authHeader != "Token abc" {
				token := tt.authHeader[len("Bearer "):]
				maker.On("ParseToken", token).Return(tt.mockClaims, tt.mockErr).Once()
			}

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				assert.Equal(t, "admin", r.Context().Value(middlewarectx.User))
				assert.Equal(t, models.RoleAdmin, r.Context().Value(middlewarectx.Role))
				assert.Equal(t, "uid-1", r.Context().Value(middlewarectx.UserUID))
				w.WriteHeader(http.StatusOK)
			})

			mw := middlewarectx.JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/admin/campaigns/export", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
		})
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		role           any
		wantStatusCode int
		wantNextCalled bool
	}{
		{"admin passes", models.RoleAdmin, http.StatusOK, true},
		{"support passes", models.RoleSupport, http.StatusOK, true},
		{"super_admin passes", models.RoleSuperAdmin, http.StatusOK, true},
		{"plain user is rejected", models.RoleUser, http.StatusForbidden, false},
		{"missing role is rejected", nil, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			mw := middlewarectx.AdminOnlyMiddleware(newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodPost, "/admin/campaigns", nil)
			if tt.role != nil {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Role, tt.role))
			}

			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
		})
	}
}
