package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/jwt"
	"github.com/codescribe-ai/trial-engine/internal/lib/password"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type CampaignMock struct{ mock.Mock }

func (m *CampaignMock) OnSignup(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

type RecorderMock struct{ mock.Mock }

func (m *RecorderMock) Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata) {
	m.Called(ctx, eventName, userUID, meta)
}

type MakerMock struct{ mock.Mock }

func (m *MakerMock) GenerateToken(username, role, userUID string) (string, error) {
	args := m.Called(username, role, userUID)
	return args.String(0), args.Error(1)
}
func (m *MakerMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.CustomClaims), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Register(t *testing.T) {
	req := models.DummyRegister{
		Email:    "dev@example.com",
		Username: "dev",
		Password: "strongpass1",
	}

	t.Run("registers and fires campaign hook", func(t *testing.T) {
		repo := new(RepoMock)
		campaigns := new(CampaignMock)
		rec := new(RecorderMock)

		repo.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Email == req.Email && u.Role == models.RoleUser && u.Tier == "free" &&
				u.PasswordHash != req.Password
		})).Return("uid-1", nil).Once()
		rec.On("Emit", mock.Anything, models.EventSignup, "uid-1", mock.Anything).Once()
		repo.On("GetUser", mock.Anything, "uid-1").
			Return(&models.User{UID: "uid-1", Email: req.Email}, nil).Once()
		campaigns.On("OnSignup", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.UID == "uid-1"
		})).Once()

		svc := NewService(repo, campaigns, rec, new(MakerMock), newNoopLogger())
		uid, err := svc.Register(context.Background(), req)

		assert.NoError(t, err)
		assert.Equal(t, "uid-1", uid)
		repo.AssertExpectations(t)
		campaigns.AssertExpectations(t)
		rec.AssertExpectations(t)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("RegisterUser", mock.Anything, mock.Anything).
			Return("", apperr.Conflict("username already taken")).Once()

		svc := NewService(repo, new(CampaignMock), new(RecorderMock), new(MakerMock), newNoopLogger())
		_, err := svc.Register(context.Background(), req)

		var domain *apperr.Error
		assert.True(t, errors.As(err, &domain))
		assert.Equal(t, apperr.CodeConflict, domain.Code)
	})

	t.Run("registration survives failed user reload", func(t *testing.T) {
		repo := new(RepoMock)
		rec := new(RecorderMock)

		repo.On("RegisterUser", mock.Anything, mock.Anything).Return("uid-2", nil).Once()
		rec.On("Emit", mock.Anything, models.EventSignup, "uid-2", mock.Anything).Once()
		repo.On("GetUser", mock.Anything, "uid-2").
			Return(nil, errors.New("db down")).Once()

		campaigns := new(CampaignMock)
		svc := NewService(repo, campaigns, rec, new(MakerMock), newNoopLogger())
		uid, err := svc.Register(context.Background(), req)

		assert.NoError(t, err)
		assert.Equal(t, "uid-2", uid)
		campaigns.AssertNotCalled(t, "OnSignup", mock.Anything, mock.Anything)
	})
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("strongpass1")
	assert.NoError(t, err)

	suspendedAt := time.Now()

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock, mk *MakerMock)
		req        models.DummyLogin
		wantToken  string
		wantCode   string
	}{
		{
			name: "valid credentials",
			setupMocks: func(r *RepoMock, mk *MakerMock) {
				r.On("GetUserByUsername", mock.Anything, "dev").
					Return(&models.User{UID: "uid-1", Username: "dev", Role: models.RoleUser, PasswordHash: hash}, nil).Once()
				mk.On("GenerateToken", "dev", models.RoleUser, "uid-1").Return("token-1", nil).Once()
			},
			req:       models.DummyLogin{Username: "dev", Password: "strongpass1"},
			wantToken: "token-1",
		},
		{
			name: "wrong password",
			setupMocks: func(r *RepoMock, _ *MakerMock) {
				r.On("GetUserByUsername", mock.Anything, "dev").
					Return(&models.User{UID: "uid-1", PasswordHash: hash}, nil).Once()
			},
			req:      models.DummyLogin{Username: "dev", Password: "wrong"},
			wantCode: apperr.CodeForbidden,
		},
		{
			name: "unknown username",
			setupMocks: func(r *RepoMock, _ *MakerMock) {
				r.On("GetUserByUsername", mock.Anything, "ghost").
					Return(nil, apperr.NotFound("user not found")).Once()
			},
			req:      models.DummyLogin{Username: "ghost", Password: "strongpass1"},
			wantCode: apperr.CodeForbidden,
		},
		{
			name: "suspended account",
			setupMocks: func(r *RepoMock, _ *MakerMock) {
				r.On("GetUserByUsername", mock.Anything, "dev").
					Return(&models.User{UID: "uid-1", PasswordHash: hash, Suspended: true}, nil).Once()
			},
			req:      models.DummyLogin{Username: "dev", Password: "strongpass1"},
			wantCode: apperr.CodeForbidden,
		},
		{
			name: "deleted account",
			setupMocks: func(r *RepoMock, _ *MakerMock) {
				r.On("GetUserByUsername", mock.Anything, "dev").
					Return(&models.User{UID: "uid-1", PasswordHash: hash, DeletedAt: &suspendedAt}, nil).Once()
			},
			req:      models.DummyLogin{Username: "dev", Password: "strongpass1"},
			wantCode: apperr.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			mk := new(MakerMock)
			tt.setupMocks(repo, mk)

			svc := NewService(repo, new(CampaignMock), new(RecorderMock), mk, newNoopLogger())
			token, err := svc.Login(context.Background(), tt.req)

			if tt.wantCode != "" {
				var domain *apperr.Error
				assert.True(t, errors.As(err, &domain))
				assert.Equal(t, tt.wantCode, domain.Code)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			repo.AssertExpectations(t)
			mk.AssertExpectations(t)
		})
	}
}
