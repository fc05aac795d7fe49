package models

import "time"

// TrialNotification — сообщение для очереди уведомлений о выдаче или
// истечении пробного периода. Отправка письма выполняется отдельным
// сервисом notification-sender и не влияет на исход выдачи.
type TrialNotification struct {
	Email    string    `json:"email"`    // Адрес получателя
	Username string    `json:"username"` // Имя пользователя
	Tier     string    `json:"tier"`     // Тариф пробного периода
	EndsAt   time.Time `json:"ends_at"`  // Окончание периода
}
