package trial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) GrantTrial(ctx context.Context, trial models.Trial, entry models.AuditLogEntry) (*models.Trial, error) {
	args := m.Called(ctx, trial, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trial), args.Error(1)
}
func (m *RepoMock) ListTrialsByUser(ctx context.Context, userUID string, limit int) ([]*models.Trial, error) {
	args := m.Called(ctx, userUID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Trial), args.Error(1)
}
func (m *RepoMock) ConvertActiveTrial(ctx context.Context, userUID string, now time.Time) (*models.Trial, error) {
	args := m.Called(ctx, userUID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trial), args.Error(1)
}

type EvaluatorMock struct{ mock.Mock }

func (m *EvaluatorMock) Evaluate(ctx context.Context, userUID string) (models.EligibilityResult, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(models.EligibilityResult), args.Error(1)
}

type RecorderMock struct{ mock.Mock }

func (m *RecorderMock) Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata) {
	m.Called(ctx, eventName, userUID, meta)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) TrialGranted(msg models.TrialNotification) error {
	return m.Called(msg).Error(0)
}

type ExportCacheMock struct{ mock.Mock }

func (m *ExportCacheMock) InvalidateExportCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *RepoMock, ev *EvaluatorMock, rec *RecorderMock, n *NotifierMock, now time.Time) *Service {
	cache := new(ExportCacheMock)
	cache.On("InvalidateExportCache", mock.Anything).Return(nil).Maybe()

	svc := NewService(repo, ev, rec, n, cache, newNoopLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_Grant(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	const adminUID = "admin-1"
	const targetUID = "user-42"

	user := &models.User{UID: targetUID, Email: "dev@example.com", Username: "dev"}
	eligible := models.EligibilityResult{Eligible: true}
	ineligible := models.EligibilityResult{
		Eligible:           false,
		Reason:             "trial already used",
		PreviousTrialCount: 1,
	}

	validReq := models.DummyGrant{
		TrialTier:    models.TrialTierPro,
		DurationDays: 14,
		Reason:       "customer escalation",
	}

	tests := []struct {
		name       string
		req        models.DummyGrant
		setupMocks func(r *RepoMock, ev *EvaluatorMock, rec *RecorderMock, n *NotifierMock)
		wantSource string
		wantErr    bool
		checkErr   func(t *testing.T, err error)
	}{
		{
			name: "standard grant for eligible user",
			req:  validReq,
			setupMocks: func(r *RepoMock, ev *EvaluatorMock, rec *RecorderMock, n *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(user, nil).Once()
				ev.On("Evaluate", mock.Anything, targetUID).Return(eligible, nil).Once()
				r.On("GrantTrial", mock.Anything, mock.MatchedBy(func(tr models.Trial) bool {
					return tr.Source == models.TrialSourceAdminGrant &&
						tr.EndsAt.Equal(now.AddDate(0, 0, 14))
				}), mock.MatchedBy(func(e models.AuditLogEntry) bool {
					return e.FieldName == "trial" && e.NewValue == "pro:14d" && e.ChangedBy == adminUID
				})).Return(&models.Trial{ID: 1, Source: models.TrialSourceAdminGrant, Tier: models.TrialTierPro, EndsAt: now.AddDate(0, 0, 14)}, nil).Once()
				rec.On("Emit", mock.Anything, models.EventTrial, targetUID, mock.Anything).Once()
				n.On("TrialGranted", mock.Anything).Return(nil).Once()
			},
			wantSource: models.TrialSourceAdminGrant,
		},
		{
			name: "ineligible without force returns eligibility payload",
			req:  validReq,
			setupMocks: func(r *RepoMock, ev *EvaluatorMock, _ *RecorderMock, _ *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(user, nil).Once()
				ev.On("Evaluate", mock.Anything, targetUID).Return(ineligible, nil).Once()
			},
			wantErr: true,
			checkErr: func(t *testing.T, err error) {
				var ie *apperr.IneligibleError
				assert.True(t, errors.As(err, &ie))
				assert.Equal(t, "trial already used", ie.Result.Reason)
				assert.Equal(t, 1, ie.Result.PreviousTrialCount)
			},
		},
		{
			name: "forced grant overrides ineligibility",
			req: models.DummyGrant{
				TrialTier:    models.TrialTierTeam,
				DurationDays: 30,
				Reason:       "VIP customer, approved by head of support",
				Force:        true,
			},
			setupMocks: func(r *RepoMock, ev *EvaluatorMock, rec *RecorderMock, n *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(user, nil).Once()
				ev.On("Evaluate", mock.Anything, targetUID).Return(ineligible, nil).Once()
				r.On("GrantTrial", mock.Anything, mock.MatchedBy(func(tr models.Trial) bool {
					return tr.Source == models.TrialSourceAdminForced
				}), mock.MatchedBy(func(e models.AuditLogEntry) bool {
					meta := e.Metadata.(models.GrantMetadata)
					return meta.Forced && meta.OverrideReason == "trial already used"
				})).Return(&models.Trial{ID: 2, Source: models.TrialSourceAdminForced, Tier: models.TrialTierTeam}, nil).Once()
				rec.On("Emit", mock.Anything, models.EventTrial, targetUID, mock.Anything).Once()
				n.On("TrialGranted", mock.Anything).Return(nil).Once()
			},
			wantSource: models.TrialSourceAdminForced,
		},
		{
			name: "notification failure does not fail the grant",
			req:  validReq,
			setupMocks: func(r *RepoMock, ev *EvaluatorMock, rec *RecorderMock, n *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(user, nil).Once()
				ev.On("Evaluate", mock.Anything, targetUID).Return(eligible, nil).Once()
				r.On("GrantTrial", mock.Anything, mock.Anything, mock.Anything).
					Return(&models.Trial{ID: 3, Source: models.TrialSourceAdminGrant}, nil).Once()
				rec.On("Emit", mock.Anything, models.EventTrial, targetUID, mock.Anything).Once()
				n.On("TrialGranted", mock.Anything).Return(errors.New("broker down")).Once()
			},
			wantSource: models.TrialSourceAdminGrant,
		},
		{
			name: "unknown user",
			req:  validReq,
			setupMocks: func(r *RepoMock, _ *EvaluatorMock, _ *RecorderMock, _ *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(nil, apperr.NotFound("user not found")).Once()
			},
			wantErr: true,
			checkErr: func(t *testing.T, err error) {
				var domain *apperr.Error
				assert.True(t, errors.As(err, &domain))
				assert.Equal(t, apperr.CodeNotFound, domain.Code)
			},
		},
		{
			name: "active trial conflict from storage",
			req:  validReq,
			setupMocks: func(r *RepoMock, ev *EvaluatorMock, _ *RecorderMock, _ *NotifierMock) {
				r.On("GetUser", mock.Anything, targetUID).Return(user, nil).Once()
				ev.On("Evaluate", mock.Anything, targetUID).Return(eligible, nil).Once()
				r.On("GrantTrial", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, apperr.Conflict("user already has an active trial")).Once()
			},
			wantErr: true,
			checkErr: func(t *testing.T, err error) {
				var domain *apperr.Error
				assert.True(t, errors.As(err, &domain))
				assert.Equal(t, apperr.CodeConflict, domain.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			ev := new(EvaluatorMock)
			rec := new(RecorderMock)
			n := new(NotifierMock)
			tt.setupMocks(repo, ev, rec, n)

			svc := newTestService(repo, ev, rec, n, now)
			created, err := svc.Grant(context.Background(), adminUID, targetUID, tt.req)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.checkErr != nil {
					tt.checkErr(t, err)
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantSource, created.Source)
			repo.AssertExpectations(t)
			ev.AssertExpectations(t)
			n.AssertExpectations(t)
		})
	}
}

func TestService_Grant_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     models.DummyGrant
		wantMsg string
	}{
		{
			name:    "wrong tier",
			req:     models.DummyGrant{TrialTier: "enterprise", DurationDays: 14, Reason: "valid reason"},
			wantMsg: "trial tier",
		},
		{
			name:    "duration too long",
			req:     models.DummyGrant{TrialTier: models.TrialTierPro, DurationDays: 91, Reason: "valid reason"},
			wantMsg: "duration",
		},
		{
			name:    "duration zero",
			req:     models.DummyGrant{TrialTier: models.TrialTierPro, DurationDays: 0, Reason: "valid reason"},
			wantMsg: "duration",
		},
		{
			name:    "short reason",
			req:     models.DummyGrant{TrialTier: models.TrialTierPro, DurationDays: 14, Reason: "ok"},
			wantMsg: "at least 5",
		},
		{
			name: "forced grant needs a long reason",
			req: models.DummyGrant{
				TrialTier:    models.TrialTierPro,
				DurationDays: 14,
				Reason:       strings.Repeat("x", 19),
				Force:        true,
			},
			wantMsg: "at least 20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(new(RepoMock), new(EvaluatorMock), new(RecorderMock), new(NotifierMock), time.Now())

			_, err := svc.Grant(context.Background(), "admin-1", "user-1", tt.req)

			var domain *apperr.Error
			assert.True(t, errors.As(err, &domain))
			assert.Equal(t, apperr.CodeValidation, domain.Code)
			assert.Contains(t, domain.Message, tt.wantMsg)
		})
	}
}

func TestService_Grant_ForcedReasonBoundary(t *testing.T) {
	// Ровно 20 символов обоснования достаточно для принудительной выдачи.
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	repo := new(RepoMock)
	ev := new(EvaluatorMock)
	rec := new(RecorderMock)
	n := new(NotifierMock)

	repo.On("GetUser", mock.Anything, "user-1").
		Return(&models.User{UID: "user-1"}, nil).Once()
	ev.On("Evaluate", mock.Anything, "user-1").
		Return(models.EligibilityResult{Eligible: false, Reason: "trial already used"}, nil).Once()
	repo.On("GrantTrial", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Trial{ID: 5, Source: models.TrialSourceAdminForced}, nil).Once()
	rec.On("Emit", mock.Anything, models.EventTrial, "user-1", mock.Anything).Once()
	n.On("TrialGranted", mock.Anything).Return(nil).Once()

	svc := newTestService(repo, ev, rec, n, now)
	created, err := svc.Grant(context.Background(), "admin-1", "user-1", models.DummyGrant{
		TrialTier:    models.TrialTierPro,
		DurationDays: 14,
		Reason:       strings.Repeat("x", 20),
		Force:        true,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.TrialSourceAdminForced, created.Source)
}

func TestService_History(t *testing.T) {
	repo := new(RepoMock)
	trials := []*models.Trial{{ID: 2}, {ID: 1}}

	repo.On("GetUser", mock.Anything, "user-1").
		Return(&models.User{UID: "user-1"}, nil).Once()
	repo.On("ListTrialsByUser", mock.Anything, "user-1", historyLimit).
		Return(trials, nil).Once()

	svc := newTestService(repo, new(EvaluatorMock), new(RecorderMock), new(NotifierMock), time.Now())
	got, err := svc.History(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, trials, got)
	repo.AssertExpectations(t)
}

func TestService_History_UnknownUser(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetUser", mock.Anything, "ghost").
		Return(nil, apperr.NotFound("user not found")).Once()

	svc := newTestService(repo, new(EvaluatorMock), new(RecorderMock), new(NotifierMock), time.Now())
	_, err := svc.History(context.Background(), "ghost")

	var domain *apperr.Error
	assert.True(t, errors.As(err, &domain))
	assert.Equal(t, apperr.CodeNotFound, domain.Code)
}

func TestService_Convert(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := new(RepoMock)
	rec := new(RecorderMock)

	converted := &models.Trial{
		ID:     7,
		Source: models.TrialSourceAutoCampaign,
		Tier:   models.TrialTierPro,
		Status: models.TrialStatusConverted,
	}
	repo.On("ConvertActiveTrial", mock.Anything, "user-1", now).Return(converted, nil).Once()
	rec.On("Emit", mock.Anything, models.EventConversion, "user-1", mock.MatchedBy(func(meta models.EventMetadata) bool {
		return meta.Source == models.TrialSourceAutoCampaign
	})).Once()

	svc := newTestService(repo, new(EvaluatorMock), rec, new(NotifierMock), now)
	got, err := svc.Convert(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, converted, got)
	repo.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestService_Convert_InvalidatesExportCache(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cacheErr error
	}{
		{name: "cache cleared after conversion"},
		{name: "cache failure does not fail conversion", cacheErr: errors.New("redis down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("ConvertActiveTrial", mock.Anything, "user-1", now).
				Return(&models.Trial{ID: 7, Status: models.TrialStatusConverted}, nil).Once()

			rec := new(RecorderMock)
			rec.On("Emit", mock.Anything, models.EventConversion, "user-1", mock.Anything).Once()

			cache := new(ExportCacheMock)
			cache.On("InvalidateExportCache", mock.Anything).Return(tt.cacheErr).Once()

			svc := NewService(repo, new(EvaluatorMock), rec, new(NotifierMock), cache, newNoopLogger())
			svc.now = func() time.Time { return now }

			_, err := svc.Convert(context.Background(), "user-1")

			assert.NoError(t, err)
			cache.AssertExpectations(t)
		})
	}
}
