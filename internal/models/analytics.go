package models

import "time"

// Имена бизнес-событий, записываемых для последующей агрегации.
const (
	EventSignup       = "signup"
	EventVerification = "verification"
	EventActivation   = "activation"
	EventTrial        = "trial"
	EventConversion   = "conversion"
)

// AnalyticsEvent — бизнес-событие для атрибуции и аналитики.
// В отличие от аудита, запись события выполняется по принципу
// best-effort: сбой записи не откатывает само бизнес-действие.
type AnalyticsEvent struct {
	ID        int           `json:"id"`         // Идентификатор события
	EventName string        `json:"event_name"` // Имя события
	UserUID   string        `json:"user_uid"`   // Пользователь события
	Metadata  EventMetadata `json:"metadata"`   // Детали события
	CreatedAt time.Time     `json:"created_at"` // Момент записи
}

// EventMetadata — детали аналитического события.
type EventMetadata struct {
	Action     string `json:"action,omitempty"`      // Конкретное действие, например admin_grant_succeeded
	Source     string `json:"source,omitempty"`      // Механизм привлечения
	Forced     bool   `json:"forced,omitempty"`      // Принудительная ли выдача
	Tier       string `json:"tier,omitempty"`        // Затронутый тариф
	IsInternal bool   `json:"is_internal,omitempty"` // Событие внутреннего пользователя
}
