// Package deletion реализует HTTP-обработчики планирования и отмены удаления
// учётной записи.
//
// Планирование назначает дату удаления с учётом льготного периода; отмена
// идемпотентна и возвращает успех, даже если удаление не было запланировано.
package deletion

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/codescribe-ai/trial-engine/internal/http/middlewarectx"
	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами планирования удаления учётных записей.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис администрирования пользователей
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс планирования и отмены удаления.
type Service interface {
	ScheduleDeletion(ctx context.Context, adminUID, targetUID, reason string) (*time.Time, error)
	CancelDeletion(ctx context.Context, adminUID, targetUID, reason string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Schedule godoc
// @Summary Запланировать удаление учётной записи
// @Description Назначает дату удаления учётной записи с учётом льготного периода.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param request body models.DummyAdminAction true "Обоснование удаления"
// @Success 200 {object} map[string]any "Удаление запланировано"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/schedule-deletion [post]
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.scheduledeletion"

	log, targetUID, adminUID, reason, ok := h.prepare(w, r, op)
	if !ok {
		return
	}

	deletionDate, err := h.service.ScheduleDeletion(r.Context(), adminUID, targetUID, reason)
	if err != nil {
		log.Error("failed to schedule deletion", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("deletion scheduled", sl.UID(targetUID), slog.Time("deletion_date", *deletionDate))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid":      targetUID,
		"deletion_date": deletionDate,
	}))
}

// Cancel godoc
// @Summary Отменить запланированное удаление
// @Description Снимает запланированное удаление учётной записи. Операция идемпотентна.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param request body models.DummyAdminAction true "Обоснование отмены"
// @Success 200 {object} map[string]any "Удаление отменено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/cancel-deletion [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.canceldeletion"

	log, targetUID, adminUID, reason, ok := h.prepare(w, r, op)
	if !ok {
		return
	}

	if err := h.service.CancelDeletion(r.Context(), adminUID, targetUID, reason); err != nil {
		log.Error("failed to cancel deletion", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("deletion cancelled", sl.UID(targetUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid": targetUID,
	}))
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, op string) (*slog.Logger, string, string, string, bool) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	targetUID := chi.URLParam(r, "userUID")
	if targetUID == "" {
		log.Error("target user uid is missing in url")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("user uid is required"))
		return nil, "", "", "", false
	}

	var req models.DummyAdminAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return nil, "", "", "", false
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return nil, "", "", "", false
	}

	adminUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return nil, "", "", "", false
	}

	return log, targetUID, adminUID, req.Reason, true
}
