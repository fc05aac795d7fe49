// Package eligibility реализует правила допуска пользователя к выдаче
// стандартного пробного периода. Оценка — чистое чтение без побочных
// эффектов; каждое обращение заново читает состояние из хранилища,
// результат никогда не кешируется.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/config"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// recentTrialsLimit — сколько последних периодов возвращается
// административному интерфейсу вместе с отказом.
const recentTrialsLimit = 3

// Причины отказа в выдаче. Первое сработавшее правило определяет причину.
const (
	ReasonActiveTrial = "active trial exists"
	ReasonTrialUsed   = "trial already used"
	ReasonCooldown    = "trial cooldown period has not elapsed"
	ReasonMaxTrials   = "maximum trial count reached"
)

// TrialRepository определяет методы чтения пробных периодов из хранилища.
type TrialRepository interface {
	// GetActiveTrial возвращает активный период пользователя или nil.
	GetActiveTrial(ctx context.Context, userUID string) (*models.Trial, error)
	// CountTrialsByUser возвращает общее число периодов пользователя.
	CountTrialsByUser(ctx context.Context, userUID string) (int, error)
	// ListTrialsByUser возвращает периоды пользователя, новые первыми.
	ListTrialsByUser(ctx context.Context, userUID string, limit int) ([]*models.Trial, error)
}

// Evaluator применяет правила допуска в фиксированном порядке.
type Evaluator struct {
	repo   TrialRepository
	policy config.TrialPolicy
	log    *slog.Logger
	now    func() time.Time
}

// NewEvaluator создает новый экземпляр Evaluator.
func NewEvaluator(repo TrialRepository, policy config.TrialPolicy, log *slog.Logger) *Evaluator {
	return &Evaluator{
		repo:   repo,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// Evaluate решает, допущен ли пользователь к выдаче стандартного
// пробного периода. Правила проверяются по порядку, побеждает первое
// нарушенное; вместе с решением возвращается история до трёх последних
// периодов для административного интерфейса.
func (e *Evaluator) Evaluate(ctx context.Context, userUID string) (models.EligibilityResult, error) {
	const op = "eligibility.Evaluate"

	count, err := e.repo.CountTrialsByUser(ctx, userUID)
	if err != nil {
		return models.EligibilityResult{}, fmt.Errorf("%s: %w", op, err)
	}

	recent, err := e.repo.ListTrialsByUser(ctx, userUID, recentTrialsLimit)
	if err != nil {
		return models.EligibilityResult{}, fmt.Errorf("%s: %w", op, err)
	}

	result := models.EligibilityResult{
		Eligible:           true,
		PreviousTrialCount: count,
		RecentTrials:       briefs(recent),
	}

	now := e.now()

	active, err := e.repo.GetActiveTrial(ctx, userUID)
	if err != nil {
		return models.EligibilityResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if active != nil && active.EndsAt.After(now) {
		result.Eligible = false
		result.Reason = ReasonActiveTrial
		return result, nil
	}

	if count > 0 {
		result.Eligible = false
		result.Reason = ReasonTrialUsed
		return result, nil
	}

	if reason := e.policyReason(now, count, recent); reason != "" {
		result.Eligible = false
		result.Reason = reason
		return result, nil
	}

	return result, nil
}

// policyReason проверяет настраиваемые правила: потолок числа периодов
// и окно охлаждения после окончания последнего. Нулевые значения в
// конфигурации отключают соответствующее правило.
func (e *Evaluator) policyReason(now time.Time, count int, recent []*models.Trial) string {
	if e.policy.MaxTrials > 0 && count >= e.policy.MaxTrials {
		return ReasonMaxTrials
	}
	if e.policy.CooldownDays > 0 && len(recent) > 0 {
		cooldownEnd := recent[0].EndsAt.AddDate(0, 0, e.policy.CooldownDays)
		if now.Before(cooldownEnd) {
			return ReasonCooldown
		}
	}
	return ""
}

func briefs(trials []*models.Trial) []models.TrialBrief {
	result := make([]models.TrialBrief, 0, len(trials))
	for _, t := range trials {
		result = append(result, models.TrialBrief{
			Tier:      t.Tier,
			Source:    t.Source,
			Status:    t.Status,
			StartedAt: t.StartedAt,
			EndsAt:    t.EndsAt,
			Forced:    t.Forced(),
		})
	}
	return result
}
