package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

const campaignColumns = `id, name, trial_tier, trial_days, starts_at, ends_at,
			      is_active, signups_count, conversions_count, created_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.Campaign, error) {
	c := &models.Campaign{}
	var endsAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.TrialTier, &c.TrialDays, &c.StartsAt, &endsAt,
		&c.IsActive, &c.SignupsCount, &c.ConversionsCount, &c.CreatedAt); err != nil {
		return nil, err
	}
	if endsAt.Valid {
		c.EndsAt = &endsAt.Time
	}
	return c, nil
}

// CreateCampaign сохраняет новую кампанию в неактивном состоянии.
func (s *Storage) CreateCampaign(ctx context.Context, c models.Campaign) (*models.Campaign, error) {
	const op = "storage.CreateCampaign"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO campaigns (name, trial_tier, trial_days, starts_at, ends_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + campaignColumns
	created, err := scanCampaign(s.DB.QueryRowContext(ctx, query,
		c.Name, c.TrialTier, c.TrialDays, c.StartsAt, c.EndsAt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetCampaign возвращает кампанию по её ID.
func (s *Storage) GetCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	const op = "storage.GetCampaign"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := scanCampaign(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("campaign not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ActivateCampaign включает кампанию. Инвариант единственной активной
// кампании обеспечивается частичным уникальным индексом: из двух
// конкурентных активаций зафиксируется ровно одна, проигравшая получит
// доменный конфликт.
func (s *Storage) ActivateCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	const op = "storage.ActivateCampaign"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE campaigns SET is_active = TRUE WHERE id = $1
			  RETURNING ` + campaignColumns
	c, err := scanCampaign(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if violatesIndex(err, constraintSingleActiveCampaign) {
			return nil, apperr.Conflict("another campaign is already active")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("campaign not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// DeactivateCampaign выключает кампанию.
func (s *Storage) DeactivateCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	const op = "storage.DeactivateCampaign"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE campaigns SET is_active = FALSE WHERE id = $1
			  RETURNING ` + campaignColumns
	c, err := scanCampaign(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("campaign not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// FindActiveCampaigns возвращает кампании с включённым флагом is_active.
// Благодаря индексу таких не более одной; фактическую активность по окну
// дат вызывающая сторона вычисляет лениво через ActiveNow.
func (s *Storage) FindActiveCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	const op = "storage.FindActiveCampaigns"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE is_active`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListCampaigns возвращает все кампании, новые первыми.
func (s *Storage) ListCampaigns(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	const op = "storage.ListCampaigns"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + campaignColumns + `
			  FROM campaigns
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
