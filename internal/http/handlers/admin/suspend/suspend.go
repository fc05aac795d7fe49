// Package suspend реализует HTTP-обработчики блокировки и разблокировки
// учётных записей административным интерфейсом.
package suspend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/codescribe-ai/trial-engine/internal/http/middlewarectx"
	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами блокировки учётных записей.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис администрирования пользователей
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс блокировки учётной записи.
type Service interface {
	Suspend(ctx context.Context, adminUID, targetUID, reason string) error
	Unsuspend(ctx context.Context, adminUID, targetUID, reason string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Suspend godoc
// @Summary Заблокировать учётную запись
// @Description Блокирует учётную запись пользователя с указанием причины.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param request body models.DummyAdminAction true "Обоснование блокировки"
// @Success 200 {object} map[string]any "Учётная запись заблокирована"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/suspend [post]
func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "handlers.admin.suspend", h.service.Suspend, "user suspended")
}

// Unsuspend godoc
// @Summary Разблокировать учётную запись
// @Description Снимает блокировку с учётной записи пользователя.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param request body models.DummyAdminAction true "Обоснование разблокировки"
// @Success 200 {object} map[string]any "Учётная запись разблокирована"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/unsuspend [post]
func (h *Handler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "handlers.admin.unsuspend", h.service.Unsuspend, "user unsuspended")
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, op string,
	action func(ctx context.Context, adminUID, targetUID, reason string) error, doneMsg string) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	targetUID := chi.URLParam(r, "userUID")
	if targetUID == "" {
		log.Error("target user uid is missing in url")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("user uid is required"))
		return
	}

	var req models.DummyAdminAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	adminUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := action(r.Context(), adminUID, targetUID, req.Reason); err != nil {
		log.Error("admin action failed", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info(doneMsg, sl.UID(targetUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid": targetUID,
	}))
}
