package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codescribe-ai/trial-engine/internal/models"
)

// InsertEvent сохраняет аналитическое событие. Вызывающая сторона
// обрабатывает ошибку по принципу best-effort.
func (s *Storage) InsertEvent(ctx context.Context, event models.AnalyticsEvent) error {
	const op = "storage.InsertEvent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO analytics_events (event_name, user_uid, metadata)
			  VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query, event.EventName, event.UserUID, metadata); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TrialSourceBreakdown агрегирует пробные периоды за отчётный период
// по источникам выдачи с числом конверсий по каждому источнику.
func (s *Storage) TrialSourceBreakdown(ctx context.Context, filter models.ExportFilter) ([]models.SourceBreakdown, error) {
	const op = "storage.TrialSourceBreakdown"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT source,
			      COUNT(*) AS trials,
			      COUNT(*) FILTER (WHERE status = 'converted') AS conversions
			  FROM trials
			  WHERE started_at >= $1 AND started_at <= $2
			    AND ($3 = '' OR source = $3)
			  GROUP BY source
			  ORDER BY source`
	rows, err := s.DB.QueryContext(ctx, query, filter.StartDate, filter.EndDate, filter.CampaignSource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.SourceBreakdown
	for rows.Next() {
		var b models.SourceBreakdown
		if err = rows.Scan(&b.Source, &b.Trials, &b.Conversions); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if b.Trials > 0 {
			b.Rate = float64(b.Conversions) / float64(b.Trials)
		}
		result = append(result, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CampaignStatsForPeriod возвращает показатели кампаний, пробные периоды
// которых попали в отчётный период.
func (s *Storage) CampaignStatsForPeriod(ctx context.Context, filter models.ExportFilter) ([]models.CampaignStats, error) {
	const op = "storage.CampaignStatsForPeriod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT c.id, c.name,
			      COUNT(t.id) AS signups,
			      COUNT(t.id) FILTER (WHERE t.status = 'converted') AS conversions
			  FROM campaigns c
			  JOIN trials t ON t.campaign_id = c.id
			  WHERE t.started_at >= $1 AND t.started_at <= $2
			  GROUP BY c.id, c.name
			  ORDER BY c.id`
	rows, err := s.DB.QueryContext(ctx, query, filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.CampaignStats
	for rows.Next() {
		var cs models.CampaignStats
		if err = rows.Scan(&cs.CampaignID, &cs.Name, &cs.Signups, &cs.Conversions); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if cs.Signups > 0 {
			cs.ConversionRate = float64(cs.Conversions) / float64(cs.Signups)
		}
		result = append(result, cs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
