// Package trial содержит бизнес-логику выдачи пробных периодов
// административным API и их конверсии в платный план.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/metrics"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Границы валидации выдачи.
const (
	minDurationDays = 1
	maxDurationDays = 90
	// Минимальная длина обоснования для обычной выдачи.
	minReasonLen = 5
	// Принудительная выдача обходит правила допуска и требует
	// развёрнутого обоснования.
	minForcedReasonLen = 20
)

const historyLimit = 100

// Repository определяет методы хранилища, нужные сервису выдачи.
type Repository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// GrantTrial создаёт период и запись аудита в одной транзакции.
	GrantTrial(ctx context.Context, trial models.Trial, entry models.AuditLogEntry) (*models.Trial, error)
	// ListTrialsByUser возвращает периоды пользователя, новые первыми.
	ListTrialsByUser(ctx context.Context, userUID string, limit int) ([]*models.Trial, error)
	// ConvertActiveTrial помечает активный период конвертированным.
	ConvertActiveTrial(ctx context.Context, userUID string, now time.Time) (*models.Trial, error)
}

// Evaluator описывает интерфейс оценки допуска к выдаче.
type Evaluator interface {
	Evaluate(ctx context.Context, userUID string) (models.EligibilityResult, error)
}

// Recorder описывает интерфейс записи аналитических событий.
type Recorder interface {
	Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata)
}

// Notifier описывает интерфейс публикации уведомлений о выдаче.
type Notifier interface {
	TrialGranted(msg models.TrialNotification) error
}

// ExportCache описывает сброс закешированных отчётов экспорта.
// Конверсия меняет счётчики, попадающие в агрегаты экспорта.
type ExportCache interface {
	InvalidateExportCache(ctx context.Context) error
}

// Service реализует выдачу, историю и конверсию пробных периодов.
type Service struct {
	repo        Repository
	evaluator   Evaluator
	recorder    Recorder
	notifier    Notifier
	exportCache ExportCache
	log         *slog.Logger
	now         func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, evaluator Evaluator, recorder Recorder, notifier Notifier,
	exportCache ExportCache, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		evaluator:   evaluator,
		recorder:    recorder,
		notifier:    notifier,
		exportCache: exportCache,
		log:         log,
		now:         time.Now,
	}
}

// Grant выдаёт пользователю пробный период от имени администратора.
//
// Стандартная выдача проходит правила допуска; при отказе возвращается
// IneligibleError с причиной и историей, чтобы интерфейс мог предложить
// принудительный режим. Принудительная выдача требует обоснования не
// короче 20 символов и записывает обойдённую причину в аудит. Период и
// запись аудита фиксируются одной транзакцией; уведомление и аналитика
// идут после коммита и не влияют на исход.
func (s *Service) Grant(ctx context.Context, adminUID, targetUID string, req models.DummyGrant) (*models.Trial, error) {
	const op = "trial.Grant"
	log := s.log.With(slog.String("op", op), sl.UID(targetUID))

	if err := validateGrant(req); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, targetUID)
	if err != nil {
		return nil, err
	}

	result, err := s.evaluator.Evaluate(ctx, targetUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	source := models.TrialSourceAdminGrant
	meta := models.GrantMetadata{
		PreviousTrialCount: result.PreviousTrialCount,
		Tier:               req.TrialTier,
		DurationDays:       req.DurationDays,
	}
	if !result.Eligible {
		if !req.Force {
			metrics.GrantsRejected.WithLabelValues(result.Reason).Inc()
			log.Info("grant blocked by eligibility rules", slog.String("reason", result.Reason))
			return nil, apperr.Ineligible(result)
		}
		source = models.TrialSourceAdminForced
		meta.Forced = true
		meta.OverrideReason = result.Reason
	}

	now := s.now()
	trial := models.Trial{
		UserUID:      targetUID,
		Tier:         req.TrialTier,
		DurationDays: req.DurationDays,
		Source:       source,
		StartedAt:    now,
		EndsAt:       now.AddDate(0, 0, req.DurationDays),
	}
	entry := models.AuditLogEntry{
		UserUID:   targetUID,
		ChangedBy: adminUID,
		FieldName: "trial",
		OldValue:  "",
		NewValue:  req.TrialTier + ":" + strconv.Itoa(req.DurationDays) + "d",
		Reason:    req.Reason,
		Metadata:  meta,
	}

	created, err := s.repo.GrantTrial(ctx, trial, entry)
	if err != nil {
		return nil, err
	}

	log.Info("trial granted",
		slog.Int("trial_id", created.ID),
		slog.String("source", created.Source),
		slog.Bool("forced", meta.Forced))
	metrics.TrialsGranted.WithLabelValues(created.Source, strconv.FormatBool(meta.Forced)).Inc()

	s.recorder.Emit(ctx, models.EventTrial, targetUID, models.EventMetadata{
		Action: "admin_grant_succeeded",
		Source: created.Source,
		Forced: meta.Forced,
		Tier:   created.Tier,
	})

	if err := s.notifier.TrialGranted(models.TrialNotification{
		Email:    user.Email,
		Username: user.Username,
		Tier:     created.Tier,
		EndsAt:   created.EndsAt,
	}); err != nil {
		log.Warn("failed to publish trial notification", sl.Err(err))
	}

	return created, nil
}

// History возвращает историю пробных периодов пользователя.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.Trial, error) {
	const op = "trial.History"

	if _, err := s.repo.GetUser(ctx, userUID); err != nil {
		return nil, err
	}

	trials, err := s.repo.ListTrialsByUser(ctx, userUID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return trials, nil
}

// Convert помечает активный период пользователя конвертированным.
// Атрибуция конверсии кампании-источнику выполняется той же
// транзакцией в хранилище.
func (s *Service) Convert(ctx context.Context, userUID string) (*models.Trial, error) {
	converted, err := s.repo.ConvertActiveTrial(ctx, userUID, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Info("trial converted", sl.UID(userUID), slog.Int("trial_id", converted.ID))
	metrics.TrialConversions.WithLabelValues(converted.Source).Inc()

	// Конверсия уже в счётчиках: закешированные отчёты экспорта
	// устарели, сбой сброса исход не меняет.
	if err := s.exportCache.InvalidateExportCache(ctx); err != nil {
		s.log.Warn("failed to invalidate export cache", sl.Err(err))
	}

	s.recorder.Emit(ctx, models.EventConversion, userUID, models.EventMetadata{
		Source: converted.Source,
		Tier:   converted.Tier,
	})
	return converted, nil
}

func validateGrant(req models.DummyGrant) error {
	if req.TrialTier != models.TrialTierPro && req.TrialTier != models.TrialTierTeam {
		return apperr.Validation("trial tier must be pro or team")
	}
	if req.DurationDays < minDurationDays || req.DurationDays > maxDurationDays {
		return apperr.Validation("duration must be between 1 and 90 days")
	}
	minLen := minReasonLen
	if req.Force {
		minLen = minForcedReasonLen
	}
	if len(req.Reason) < minLen {
		return apperr.Validation(fmt.Sprintf("reason must be at least %d characters", minLen))
	}
	return nil
}
