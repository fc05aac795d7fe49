package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindUsersDueForDeletion(ctx context.Context, now time.Time) ([]*models.User, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) SoftDeleteUser(ctx context.Context, userUID string, now time.Time) error {
	return m.Called(ctx, userUID, now).Error(0)
}
func (m *RepoMock) ExpireDueTrials(ctx context.Context, now time.Time) ([]*models.Trial, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Trial), args.Error(1)
}
func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) TrialExpired(msg models.TrialNotification) error {
	return m.Called(msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Sweep(t *testing.T) {
	now := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)

	t.Run("expires trials and notifies owners", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)

		expired := []*models.Trial{
			{ID: 1, UserUID: "user-1", Tier: models.TrialTierPro, EndsAt: now.AddDate(0, 0, -1)},
			{ID: 2, UserUID: "user-2", Tier: models.TrialTierTeam, EndsAt: now.AddDate(0, 0, -2)},
		}
		repo.On("ExpireDueTrials", mock.Anything, now).Return(expired, nil).Once()
		repo.On("GetUser", mock.Anything, "user-1").
			Return(&models.User{UID: "user-1", Email: "a@example.com"}, nil).Once()
		repo.On("GetUser", mock.Anything, "user-2").
			Return(&models.User{UID: "user-2", Email: "b@example.com"}, nil).Once()
		notifier.On("TrialExpired", mock.MatchedBy(func(n models.TrialNotification) bool {
			return n.Email == "a@example.com" && n.Tier == models.TrialTierPro
		})).Return(nil).Once()
		notifier.On("TrialExpired", mock.MatchedBy(func(n models.TrialNotification) bool {
			return n.Email == "b@example.com"
		})).Return(nil).Once()
		repo.On("FindUsersDueForDeletion", mock.Anything, now).Return([]*models.User{}, nil).Once()

		svc := NewService(repo, notifier, time.Hour, newNoopLogger())
		svc.now = func() time.Time { return now }
		svc.Sweep(context.Background())

		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("executes due deletions", func(t *testing.T) {
		repo := new(RepoMock)

		repo.On("ExpireDueTrials", mock.Anything, now).Return([]*models.Trial{}, nil).Once()
		repo.On("FindUsersDueForDeletion", mock.Anything, now).
			Return([]*models.User{{UID: "user-3"}, {UID: "user-4"}}, nil).Once()
		repo.On("SoftDeleteUser", mock.Anything, "user-3", now).Return(nil).Once()
		repo.On("SoftDeleteUser", mock.Anything, "user-4", now).Return(nil).Once()

		svc := NewService(repo, new(NotifierMock), time.Hour, newNoopLogger())
		svc.now = func() time.Time { return now }
		svc.Sweep(context.Background())

		repo.AssertExpectations(t)
	})

	t.Run("notification failure does not stop the sweep", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)

		expired := []*models.Trial{
			{ID: 1, UserUID: "user-1", Tier: models.TrialTierPro},
			{ID: 2, UserUID: "user-2", Tier: models.TrialTierPro},
		}
		repo.On("ExpireDueTrials", mock.Anything, now).Return(expired, nil).Once()
		repo.On("GetUser", mock.Anything, "user-1").
			Return(&models.User{UID: "user-1"}, nil).Once()
		repo.On("GetUser", mock.Anything, "user-2").
			Return(&models.User{UID: "user-2"}, nil).Once()
		notifier.On("TrialExpired", mock.Anything).Return(errors.New("broker down")).Twice()
		repo.On("FindUsersDueForDeletion", mock.Anything, now).Return([]*models.User{}, nil).Once()

		svc := NewService(repo, notifier, time.Hour, newNoopLogger())
		svc.now = func() time.Time { return now }
		svc.Sweep(context.Background())

		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("storage error skips the phase", func(t *testing.T) {
		repo := new(RepoMock)

		repo.On("ExpireDueTrials", mock.Anything, now).Return(nil, errors.New("db down")).Once()
		repo.On("FindUsersDueForDeletion", mock.Anything, now).Return(nil, errors.New("db down")).Once()

		svc := NewService(repo, new(NotifierMock), time.Hour, newNoopLogger())
		svc.now = func() time.Time { return now }
		svc.Sweep(context.Background())

		repo.AssertExpectations(t)
	})
}
