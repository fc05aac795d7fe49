package models

import "time"

// AuditLogEntry — неизменяемая запись журнала административных действий.
// Запись создаётся в той же транзакции, что и само изменение: состояние
// не может быть сохранено без соответствующей записи аудита. Обновление
// и удаление записей не предусмотрены, внешний ключ на users запрещает
// жёсткое удаление пользователя с историей аудита.
type AuditLogEntry struct {
	ID        int       `json:"id"`         // Идентификатор записи
	UserUID   string    `json:"user_uid"`   // Пользователь, которого касается изменение
	ChangedBy string    `json:"changed_by"` // Администратор, выполнивший действие
	FieldName string    `json:"field_name"` // Изменённое поле: trial, role, suspended, deletion
	OldValue  string    `json:"old_value"`  // Значение до изменения
	NewValue  string    `json:"new_value"`  // Значение после изменения
	Reason    string    `json:"reason"`     // Обоснование, указанное администратором
	Metadata  any       `json:"metadata"`   // Типизированные детали действия
	CreatedAt time.Time `json:"created_at"` // Момент записи
}

// GrantMetadata — детали выдачи пробного периода. Для принудительной
// выдачи сохраняется причина, которую администратор обошёл, и число
// предыдущих пробных периодов на момент решения.
type GrantMetadata struct {
	Forced             bool   `json:"forced"`                    // Была ли выдача принудительной
	OverrideReason     string `json:"override_reason,omitempty"` // Обойдённая причина отказа
	PreviousTrialCount int    `json:"previous_trial_count"`      // Пробных периодов до выдачи
	Tier               string `json:"tier"`                      // Выданный тариф
	DurationDays       int    `json:"duration_days"`             // Длительность в днях
}

// RoleMetadata — детали смены роли пользователя.
type RoleMetadata struct {
	PreviousRole string `json:"previous_role"` // Роль до изменения
	NewRole      string `json:"new_role"`      // Назначенная роль
}

// SuspendMetadata — детали блокировки или разблокировки учётной записи.
type SuspendMetadata struct {
	Suspended bool `json:"suspended"` // true — блокировка, false — снятие
}

// DeletionMetadata — детали планирования удаления учётной записи.
type DeletionMetadata struct {
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"` // Запланированная дата удаления
}
