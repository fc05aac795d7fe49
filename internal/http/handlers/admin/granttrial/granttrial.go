// Package granttrial реализует HTTP-обработчик выдачи пробного периода
// администратором.
//
// Handler принимает JSON-запрос с параметрами периода, валидирует их,
// извлекает UID администратора из контекста и целевого пользователя из URL,
// вызывает бизнес-логику выдачи и возвращает созданную запись.
//
// При отказе по правилам допуска возвращается HTTP 409 с причиной и историей
// последних периодов, чтобы администратор мог решить о принудительной выдаче.
package granttrial

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

// Handler управляет HTTP-запросами на выдачу пробных периодов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики пробных периодов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики выдачи пробного периода.
type Service interface {
	Grant(ctx context.Context, adminUID, targetUID string, req models.DummyGrant) (*models.Trial, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдать пробный период
// @Description Выдаёт пробный период указанному пользователю. При отказе по правилам допуска возвращает причину и историю периодов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param request body models.DummyGrant true "Параметры пробного периода"
// @Success 200 {object} map[string]any "Период выдан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или обоснование"
// @Failure 401 {object} response.ErrorResponse "Администратор не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Пользователь не допущен или период уже активен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/grant-trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.granttrial"

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

	var req models.DummyGrant
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	adminUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	trial, err := h.service.Grant(r.Context(), adminUID, targetUID, req)
	if err != nil {
		log.Error("failed to grant trial", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("trial granted", sl.UID(targetUID), slog.Int("trial_id", trial.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"trial": trial,
	}))
}
