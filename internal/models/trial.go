package models

import (
	"strings"
	"time"
)

// Тарифы, доступные для пробного периода.
const (
	TrialTierPro  = "pro"
	TrialTierTeam = "team"
)

// Источники выдачи пробного периода. Атрибуция сохраняется в каждой записи,
// чтобы экспорт мог разложить конверсии по механизмам привлечения.
const (
	TrialSourceInvite       = "invite"
	TrialSourceSelfServe    = "self_serve"
	TrialSourceAdminGrant   = "admin_grant"
	TrialSourceAdminForced  = "admin_grant_forced"
	TrialSourceAutoCampaign = "auto_campaign"
)

// Статусы пробного периода.
const (
	TrialStatusActive    = "active"
	TrialStatusExpired   = "expired"
	TrialStatusConverted = "converted"
)

// Trial представляет ограниченный по времени доступ пользователя
// к повышенному тарифу. У пользователя может быть не более одного
// активного пробного периода — инвариант закреплён частичным
// уникальным индексом в базе данных.
type Trial struct {
	ID           int        `json:"id"`                     // Идентификатор записи
	UserUID      string     `json:"user_uid"`               // Владелец пробного периода
	Tier         string     `json:"tier"`                   // Тариф: pro или team
	DurationDays int        `json:"duration_days"`          // Длительность в днях
	Source       string     `json:"source"`                 // Механизм выдачи
	Status       string     `json:"status"`                 // active, expired или converted
	StartedAt    time.Time  `json:"started_at"`             // Начало действия
	EndsAt       time.Time  `json:"ends_at"`                // Окончание действия
	ConvertedAt  *time.Time `json:"converted_at,omitempty"` // Момент конверсии в платный план
	CampaignID   *int       `json:"campaign_id,omitempty"`  // Кампания-источник, если была
}

// Forced сообщает, был ли пробный период выдан в обход правил
// допуска (источник содержит пометку forced).
func (t *Trial) Forced() bool {
	return strings.Contains(t.Source, "forced")
}

// EligibilityResult содержит решение о допуске пользователя к выдаче
// стандартного пробного периода вместе с историей, которую
// административный интерфейс показывает перед принудительной выдачей.
type EligibilityResult struct {
	Eligible           bool         `json:"eligible"`             // Допущен ли пользователь
	Reason             string       `json:"reason,omitempty"`     // Причина отказа, если не допущен
	PreviousTrialCount int          `json:"previous_trial_count"` // Сколько пробных периодов уже было
	RecentTrials       []TrialBrief `json:"recent_trials"`        // До трёх последних периодов
}

// TrialBrief — сокращённое представление пробного периода для ответа
// о допуске: административному интерфейсу не нужна полная запись.
type TrialBrief struct {
	Tier      string    `json:"tier"`       // Тариф периода
	Source    string    `json:"source"`     // Механизм выдачи
	Status    string    `json:"status"`     // Статус периода
	StartedAt time.Time `json:"started_at"` // Начало действия
	EndsAt    time.Time `json:"ends_at"`    // Окончание действия
	Forced    bool      `json:"forced"`     // Была ли выдача принудительной
}

// DummyGrant используется для приёма данных выдачи пробного периода
// из JSON-запроса административного API.
type DummyGrant struct {
	TrialTier    string `json:"trial_tier" validate:"required,oneof=pro team"` // Тариф
	DurationDays int    `json:"duration_days" validate:"required,min=1,max=90"` // Длительность в днях
	Reason       string `json:"reason" validate:"required"`                     // Обоснование выдачи
	Force        bool   `json:"force"`                                          // Принудительная выдача
}
