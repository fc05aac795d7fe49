package models

import "time"

// Campaign представляет промо-кампанию, автоматически выдающую пробный
// период каждому новому пользователю в течение своего окна действия.
// Системный инвариант: в любой момент активна не более одной кампании,
// что закреплено частичным уникальным индексом в базе данных.
type Campaign struct {
	ID               int        `json:"id"`                 // Идентификатор кампании
	Name             string     `json:"name"`               // Название
	TrialTier        string     `json:"trial_tier"`         // Тариф выдаваемого периода
	TrialDays        int        `json:"trial_days"`         // Длительность выдаваемого периода
	StartsAt         time.Time  `json:"starts_at"`          // Начало окна действия
	EndsAt           *time.Time `json:"ends_at,omitempty"`  // Конец окна (nil — бессрочно)
	IsActive         bool       `json:"is_active"`          // Ручной переключатель активности
	SignupsCount     int        `json:"signups_count"`      // Количество привлечённых регистраций
	ConversionsCount int        `json:"conversions_count"`  // Количество конверсий
	CreatedAt        time.Time  `json:"created_at"`         // Дата создания
}

// ActiveNow вычисляет фактическую активность кампании лениво, на момент
// чтения: флаг is_active не сбрасывается фоновым процессом по истечении
// окна, решение всегда принимается по текущему времени.
func (c *Campaign) ActiveNow(now time.Time) bool {
	if !c.IsActive || now.Before(c.StartsAt) {
		return false
	}
	return c.EndsAt == nil || !now.After(*c.EndsAt)
}

// DummyCampaign используется для приёма данных новой кампании из
// JSON-запроса. Даты приходят строками в формате RFC3339.
type DummyCampaign struct {
	Name      string `json:"name" validate:"required"`                       // Название кампании
	TrialTier string `json:"trial_tier" validate:"required,oneof=pro team"`  // Тариф периода
	TrialDays int    `json:"trial_days" validate:"required,min=1,max=90"`    // Длительность периода
	StartsAt  string `json:"starts_at" validate:"required"`                  // Начало окна, RFC3339
	EndsAt    string `json:"ends_at,omitempty" validate:"omitempty"`         // Конец окна, RFC3339 (опционально)
}

// ExportFilter задаёт период и источник для экспорта аналитики кампаний.
type ExportFilter struct {
	StartDate      time.Time // Начало отчётного периода
	EndDate        time.Time // Конец отчётного периода
	CampaignSource string    // Фильтр по источнику выдачи (пусто — все)
}

// SourceBreakdown — разбивка выданных периодов и конверсий по источнику.
type SourceBreakdown struct {
	Source      string  `json:"source"`      // Механизм выдачи
	Trials      int     `json:"trials"`      // Выдано периодов
	Conversions int     `json:"conversions"` // Из них конвертировалось
	Rate        float64 `json:"rate"`        // Доля конверсий
}

// CampaignStats — агрегированные показатели одной кампании в экспорте.
type CampaignStats struct {
	CampaignID     int     `json:"campaign_id"`     // Идентификатор кампании
	Name           string  `json:"name"`            // Название
	Signups        int     `json:"signups"`         // Привлечено регистраций
	Conversions    int     `json:"conversions"`     // Конверсий
	ConversionRate float64 `json:"conversion_rate"` // Доля конверсий
}

// ExportReport — итоговая структура экспорта аналитики кампаний.
type ExportReport struct {
	StartDate      string            `json:"start_date"`      // Начало периода
	EndDate        string            `json:"end_date"`        // Конец периода
	TotalTrials    int               `json:"total_trials"`    // Всего выдано периодов
	TrialBreakdown []SourceBreakdown `json:"trial_breakdown"` // Разбивка по источникам
	Campaigns      []CampaignStats   `json:"campaigns"`       // Показатели кампаний
	ConversionLift float64           `json:"conversion_lift"` // Прирост конверсии кампаний к органике
}
