// Package campaign реализует управление промо-кампаниями: создание,
// переключение активности с защитой от гонок, автоматическую выдачу
// пробного периода новым пользователям и экспорт аналитики.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/metrics"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// exportCacheTTL — время жизни закешированного отчёта экспорта.
// Кешируется только готовый агрегат, не состояние кампаний.
const exportCacheTTL = 5 * time.Minute

// exportCachePrefix — пространство ключей отчётов экспорта в кеше.
// Сбрасывается целиком после переключения кампании или конверсии.
const exportCachePrefix = "campaign_export:"

// exportDateLayout — формат дат в параметрах экспорта.
const exportDateLayout = "2006-01-02"

// Repository определяет методы хранилища, нужные менеджеру кампаний.
type Repository interface {
	CreateCampaign(ctx context.Context, c models.Campaign) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id int) (*models.Campaign, error)
	// ActivateCampaign включает кампанию; при другой активной кампании
	// возвращает доменный конфликт.
	ActivateCampaign(ctx context.Context, id int) (*models.Campaign, error)
	DeactivateCampaign(ctx context.Context, id int) (*models.Campaign, error)
	FindActiveCampaigns(ctx context.Context) ([]*models.Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]*models.Campaign, error)
	CountTrialsByUser(ctx context.Context, userUID string) (int, error)
	// CreateTrial создаёт период автоматической выдачи, атомарно
	// инкрементируя счётчик регистраций кампании.
	CreateTrial(ctx context.Context, trial models.Trial) (*models.Trial, error)
	TrialSourceBreakdown(ctx context.Context, filter models.ExportFilter) ([]models.SourceBreakdown, error)
	CampaignStatsForPeriod(ctx context.Context, filter models.ExportFilter) ([]models.CampaignStats, error)
}

// Cache описывает методы кеширования отчётов экспорта.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Recorder описывает интерфейс записи аналитических событий.
type Recorder interface {
	Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata)
}

// Manager реализует бизнес-логику промо-кампаний.
type Manager struct {
	repo     Repository
	cache    Cache
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
}

// NewManager создает новый экземпляр Manager.
func NewManager(repo Repository, cache Cache, recorder Recorder, log *slog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		cache:    cache,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Create создаёт новую кампанию в неактивном состоянии.
func (m *Manager) Create(ctx context.Context, req models.DummyCampaign) (*models.Campaign, error) {
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, apperr.Validation("starts_at must be a valid RFC3339 timestamp")
	}
	var endsAt *time.Time
	if req.EndsAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			return nil, apperr.Validation("ends_at must be a valid RFC3339 timestamp")
		}
		if !parsed.After(startsAt) {
			return nil, apperr.Validation("ends_at must be after starts_at")
		}
		endsAt = &parsed
	}

	created, err := m.repo.CreateCampaign(ctx, models.Campaign{
		Name:      req.Name,
		TrialTier: req.TrialTier,
		TrialDays: req.TrialDays,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("campaign created", slog.Int("campaign_id", created.ID), slog.String("name", created.Name))
	return created, nil
}

// Toggle переключает активность кампании. Активация атомарна: инвариант
// единственной активной кампании обеспечивает частичный уникальный
// индекс, конкурирующая активация другой кампании получает конфликт.
func (m *Manager) Toggle(ctx context.Context, id int) (*models.Campaign, error) {
	current, err := m.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	var toggled *models.Campaign
	if current.IsActive {
		toggled, err = m.repo.DeactivateCampaign(ctx, id)
	} else {
		toggled, err = m.repo.ActivateCampaign(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	// Переключение меняет будущие агрегаты экспорта: закешированные
	// отчёты сбрасываются, сбой сброса исход не меняет.
	if err := m.cache.InvalidatePrefix(ctx, exportCachePrefix); err != nil {
		m.log.Warn("failed to invalidate export cache", sl.Err(err))
	}

	m.log.Info("campaign toggled",
		slog.Int("campaign_id", toggled.ID),
		slog.Bool("is_active", toggled.IsActive))
	return toggled, nil
}

// List возвращает страницу кампаний, новые первыми.
func (m *Manager) List(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	const op = "campaign.List"

	campaigns, err := m.repo.ListCampaigns(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return campaigns, nil
}

// InvalidateExportCache сбрасывает закешированные отчёты экспорта.
// Вызывается после конверсии пробного периода: она меняет счётчики,
// попадающие в агрегаты.
func (m *Manager) InvalidateExportCache(ctx context.Context) error {
	return m.cache.InvalidatePrefix(ctx, exportCachePrefix)
}

// OnSignup выдаёт новому пользователю пробный период, если ровно одна
// кампания фактически активна в момент регистрации. Новые пользователи
// всегда допущены, правила допуска не применяются; защита от двойной
// выдачи — проверка существующих периодов плюс уникальный индекс.
// Любой сбой здесь логируется и не прерывает саму регистрацию.
func (m *Manager) OnSignup(ctx context.Context, user *models.User) {
	const op = "campaign.OnSignup"
	log := m.log.With(slog.String("op", op), sl.UID(user.UID))

	active, err := m.activeNow(ctx)
	if err != nil {
		log.Error("failed to look up active campaign", sl.Err(err))
		return
	}
	if active == nil {
		return
	}

	count, err := m.repo.CountTrialsByUser(ctx, user.UID)
	if err != nil {
		log.Error("failed to count user trials", sl.Err(err))
		return
	}
	if count > 0 {
		log.Warn("signup already has a trial, skipping campaign grant")
		return
	}

	now := m.now()
	campaignID := active.ID
	created, err := m.repo.CreateTrial(ctx, models.Trial{
		UserUID:      user.UID,
		Tier:         active.TrialTier,
		DurationDays: active.TrialDays,
		Source:       models.TrialSourceAutoCampaign,
		StartedAt:    now,
		EndsAt:       now.AddDate(0, 0, active.TrialDays),
		CampaignID:   &campaignID,
	})
	if err != nil {
		var conflict *apperr.Error
		if errors.As(err, &conflict) && conflict.Code == apperr.CodeConflict {
			log.Warn("concurrent trial grant won the race, skipping campaign grant")
			return
		}
		log.Error("failed to auto-grant campaign trial", sl.Err(err))
		return
	}

	log.Info("campaign trial auto-granted",
		slog.Int("campaign_id", active.ID),
		slog.Int("trial_id", created.ID))
	metrics.CampaignSignups.Inc()
	metrics.TrialsGranted.WithLabelValues(created.Source, "false").Inc()

	m.recorder.Emit(ctx, models.EventTrial, user.UID, models.EventMetadata{
		Action: "campaign_auto_granted",
		Source: created.Source,
		Tier:   created.Tier,
	})
}

// activeNow возвращает кампанию, фактически активную в данный момент,
// или nil. Флаг is_active по истечении окна не сбрасывается, решение
// вычисляется лениво по текущему времени.
func (m *Manager) activeNow(ctx context.Context) (*models.Campaign, error) {
	campaigns, err := m.repo.FindActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var match *models.Campaign
	for _, c := range campaigns {
		if !c.ActiveNow(now) {
			continue
		}
		if match != nil {
			// Индекс допускает не более одной, но решение о выдаче
			// принимается только при однозначном кандидате.
			return nil, nil
		}
		match = c
	}
	return match, nil
}

// Export собирает агрегированный отчёт по пробным периодам и кампаниям
// за отчётный период. Готовый агрегат кешируется на короткое время.
func (m *Manager) Export(ctx context.Context, startDate, endDate, campaignSource string) (*models.ExportReport, error) {
	const op = "campaign.Export"

	start, err := time.Parse(exportDateLayout, startDate)
	if err != nil {
		return nil, apperr.Validation("start_date must be in YYYY-MM-DD format")
	}
	end, err := time.Parse(exportDateLayout, endDate)
	if err != nil {
		return nil, apperr.Validation("end_date must be in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}
	// Конец периода включительно, по конец суток.
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	cacheKey := fmt.Sprintf("%s%s:%s:%s", exportCachePrefix, startDate, endDate, campaignSource)
	var cached models.ExportReport
	found, err := m.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		m.log.Warn("failed to read export cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	filter := models.ExportFilter{StartDate: start, EndDate: end, CampaignSource: campaignSource}

	breakdown, err := m.repo.TrialSourceBreakdown(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats, err := m.repo.CampaignStatsForPeriod(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &models.ExportReport{
		StartDate:      startDate,
		EndDate:        endDate,
		TrialBreakdown: breakdown,
		Campaigns:      stats,
		ConversionLift: conversionLift(breakdown),
	}
	for _, b := range breakdown {
		report.TotalTrials += b.Trials
	}

	if err := m.cache.Set(ctx, cacheKey, report, exportCacheTTL); err != nil {
		m.log.Warn("failed to cache export report", slog.String("key", cacheKey), sl.Err(err))
	}
	return report, nil
}

// conversionLift считает разницу долей конверсии между периодами,
// выданными кампаниями, и всеми остальными источниками.
func conversionLift(breakdown []models.SourceBreakdown) float64 {
	var campaignTrials, campaignConversions, otherTrials, otherConversions int
	for _, b := range breakdown {
		if b.Source == models.TrialSourceAutoCampaign {
			campaignTrials += b.Trials
			campaignConversions += b.Conversions
		} else {
			otherTrials += b.Trials
			otherConversions += b.Conversions
		}
	}
	if campaignTrials == 0 || otherTrials == 0 {
		return 0
	}
	return float64(campaignConversions)/float64(campaignTrials) -
		float64(otherConversions)/float64(otherTrials)
}
