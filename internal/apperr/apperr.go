// Package apperr определяет типизированные доменные ошибки движка
// пробных периодов. На границе HTTP каждая из них преобразуется
// в соответствующий статус через errors.As, внутри сервисов ошибки
// дополнительно оборачиваются через fmt.Errorf с кодом операции.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Коды доменных ошибок, попадающие в поле error JSON-ответа.
const (
	CodeValidation = "validation_error"
	CodeIneligible = "ineligible"
	CodeForbidden  = "forbidden"
	CodeConflict   = "conflict"
	CodeNotFound   = "not_found"
)

// Error — доменная ошибка с кодом и HTTP-статусом для границы запроса.
type Error struct {
	Code       string // Машиночитаемый код ошибки
	Message    string // Человекочитаемое сообщение
	StatusCode int    // HTTP-статус на границе запроса
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation возвращает ошибку некорректных входных данных (400).
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, StatusCode: http.StatusBadRequest}
}

// Forbidden возвращает ошибку запрета действия (403).
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message, StatusCode: http.StatusForbidden}
}

// Conflict возвращает ошибку конкурентного конфликта (409).
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message, StatusCode: http.StatusConflict}
}

// NotFound возвращает ошибку отсутствия сущности (404).
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, StatusCode: http.StatusNotFound}
}

// IneligibleError — отказ бизнес-правила в выдаче пробного периода без
// режима force. Несёт причину и историю периодов, чтобы административный
// интерфейс мог показать их и предложить принудительную выдачу.
type IneligibleError struct {
	Result models.EligibilityResult // Решение о допуске с историей
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s: %s", CodeIneligible, e.Result.Reason)
}

// Ineligible возвращает ошибку отказа по правилам допуска (409).
func Ineligible(result models.EligibilityResult) *IneligibleError {
	return &IneligibleError{Result: result}
}
