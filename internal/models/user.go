// Package models содержит доменные структуры движка пробных периодов:
// пользователей, пробные периоды, промо-кампании, записи аудита и
// аналитические события, а также вспомогательные типы для приёма
// данных из JSON-запросов.
package models

import "time"

// Роли пользователей системы. Доступ к административным операциям
// определяется колонкой role, а не статическим списком адресов.
const (
	RoleUser       = "user"
	RoleSupport    = "support"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User представляет учётную запись пользователя CodeScribe AI.
type User struct {
	UID                 string     // Уникальный идентификатор пользователя
	Email               string     // Электронная почта
	Username            string     // Имя пользователя (уникальное)
	PasswordHash        string     // Хэш пароля пользователя
	Role                string     // Роль: user, support, admin или super_admin
	Tier                string     // Текущий тарифный план
	Suspended           bool       // Признак блокировки учётной записи
	SuspendedReason     *string    // Причина блокировки
	SuspendedAt         *time.Time // Момент блокировки
	DeletionScheduledAt *time.Time // Запланированное удаление учётной записи
	DeletedAt           *time.Time // Момент мягкого удаления
	TrialTier           *string    // Тариф действующего пробного периода
	TrialEndsAt         *time.Time // Дата окончания пробного периода
	CreatedAt           time.Time  // Дата регистрации
}

// IsAdminRole сообщает, даёт ли роль доступ к административному API.
func IsAdminRole(role string) bool {
	switch role {
	case RoleSupport, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`       // Электронная почта
	Username string `json:"username" validate:"required,alphanum"` // Имя пользователя
	Password string `json:"password" validate:"required,min=8"`    // Пароль (не короче 8 символов)
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Username string `json:"username" validate:"required,alphanum"` // Имя пользователя
	Password string `json:"password" validate:"required"`          // Пароль
}

// DummyRoleUpdate используется для приёма запроса на смену роли.
type DummyRoleUpdate struct {
	NewRole string `json:"new_role" validate:"required,oneof=user support admin super_admin"` // Новая роль
	Reason  string `json:"reason" validate:"required,min=5"`                                  // Обоснование изменения
}

// DummyAdminAction используется для приёма административных действий,
// требующих только обоснования: блокировка, планирование и отмена удаления.
type DummyAdminAction struct {
	Reason string `json:"reason" validate:"required,min=5"` // Обоснование действия
}
