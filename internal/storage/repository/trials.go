package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

const trialColumns = `id, user_uid, tier, duration_days, source, status,
			      started_at, ends_at, converted_at, campaign_id`

func scanTrial(row interface{ Scan(...any) error }) (*models.Trial, error) {
	t := &models.Trial{}
	var convertedAt sql.NullTime
	var campaignID sql.NullInt64
	if err := row.Scan(&t.ID, &t.UserUID, &t.Tier, &t.DurationDays, &t.Source, &t.Status,
		&t.StartedAt, &t.EndsAt, &convertedAt, &campaignID); err != nil {
		return nil, err
	}
	if convertedAt.Valid {
		t.ConvertedAt = &convertedAt.Time
	}
	if campaignID.Valid {
		id := int(campaignID.Int64)
		t.CampaignID = &id
	}
	return t, nil
}

// ListTrialsByUser возвращает пробные периоды пользователя,
// упорядоченные по дате начала, новые первыми.
func (s *Storage) ListTrialsByUser(ctx context.Context, userUID string, limit int) ([]*models.Trial, error) {
	const op = "storage.ListTrialsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + trialColumns + `
			  FROM trials
			  WHERE user_uid = $1
			  ORDER BY started_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountTrialsByUser возвращает общее число пробных периодов пользователя.
func (s *Storage) CountTrialsByUser(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountTrialsByUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM trials WHERE user_uid = $1`
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// GetActiveTrial возвращает активный пробный период пользователя
// или nil, если его нет.
func (s *Storage) GetActiveTrial(ctx context.Context, userUID string) (*models.Trial, error) {
	const op = "storage.GetActiveTrial"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + trialColumns + `
			  FROM trials
			  WHERE user_uid = $1 AND status = 'active'`
	t, err := scanTrial(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// GrantTrial создаёт пробный период и запись аудита в одной транзакции,
// попутно обновляя трейл-поля пользователя. Частичный уникальный индекс
// one_active_trial_per_user — авторитетная защита от двойной выдачи:
// проигравшая конкурентная транзакция получает доменный конфликт.
func (s *Storage) GrantTrial(ctx context.Context, trial models.Trial, entry models.AuditLogEntry) (*models.Trial, error) {
	const op = "storage.GrantTrial"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	query := `INSERT INTO trials (user_uid, tier, duration_days, source, status, started_at, ends_at, campaign_id)
			  VALUES ($1, $2, $3, $4, 'active', $5, $6, $7)
			  RETURNING ` + trialColumns
	created, err := scanTrial(tx.QueryRowContext(ctx, query,
		trial.UserUID, trial.Tier, trial.DurationDays, trial.Source,
		trial.StartedAt, trial.EndsAt, trial.CampaignID))
	if err != nil {
		if violatesIndex(err, constraintOneActiveTrial) {
			return nil, apperr.Conflict("user already has an active trial")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE users SET trial_tier = $1, trial_ends_at = $2 WHERE uid = $3`,
		created.Tier, created.EndsAt, created.UserUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = insertAuditEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// CreateTrial создаёт пробный период без записи аудита. Используется
// только для автоматической выдачи по кампании при регистрации, где
// нет действующего администратора; счётчик кампании инкрементируется
// в той же транзакции.
func (s *Storage) CreateTrial(ctx context.Context, trial models.Trial) (*models.Trial, error) {
	const op = "storage.CreateTrial"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	query := `INSERT INTO trials (user_uid, tier, duration_days, source, status, started_at, ends_at, campaign_id)
			  VALUES ($1, $2, $3, $4, 'active', $5, $6, $7)
			  RETURNING ` + trialColumns
	created, err := scanTrial(tx.QueryRowContext(ctx, query,
		trial.UserUID, trial.Tier, trial.DurationDays, trial.Source,
		trial.StartedAt, trial.EndsAt, trial.CampaignID))
	if err != nil {
		if violatesIndex(err, constraintOneActiveTrial) {
			return nil, apperr.Conflict("user already has an active trial")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE users SET trial_tier = $1, trial_ends_at = $2 WHERE uid = $3`,
		created.Tier, created.EndsAt, created.UserUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if created.CampaignID != nil {
		if _, err = tx.ExecContext(ctx,
			`UPDATE campaigns SET signups_count = signups_count + 1 WHERE id = $1`,
			*created.CampaignID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// ConvertActiveTrial переводит активный пробный период пользователя в
// статус converted и атрибутирует конверсию кампании-источнику в той же
// транзакции. Возвращает обновлённый период или NotFound, если активного
// периода нет.
func (s *Storage) ConvertActiveTrial(ctx context.Context, userUID string, now time.Time) (*models.Trial, error) {
	const op = "storage.ConvertActiveTrial"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	query := `UPDATE trials
			  SET status = 'converted', converted_at = $1
			  WHERE user_uid = $2 AND status = 'active'
			  RETURNING ` + trialColumns
	converted, err := scanTrial(tx.QueryRowContext(ctx, query, now, userUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("no active trial for user")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if converted.CampaignID != nil {
		if _, err = tx.ExecContext(ctx,
			`UPDATE campaigns SET conversions_count = conversions_count + 1 WHERE id = $1`,
			*converted.CampaignID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return converted, nil
}

// ExpireDueTrials переводит все активные периоды с истёкшим сроком в
// статус expired и возвращает затронутые записи. Операция идемпотентна.
func (s *Storage) ExpireDueTrials(ctx context.Context, now time.Time) ([]*models.Trial, error) {
	const op = "storage.ExpireDueTrials"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE trials
			  SET status = 'expired'
			  WHERE status = 'active' AND ends_at <= $1
			  RETURNING ` + trialColumns
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
