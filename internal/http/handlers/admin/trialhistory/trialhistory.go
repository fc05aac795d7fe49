// Package trialhistory реализует HTTP-обработчик просмотра истории пробных
// периодов пользователя административным интерфейсом.
package trialhistory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами на чтение истории пробных периодов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики пробных периодов
}

// Service описывает интерфейс чтения истории пробных периодов.
type Service interface {
	History(ctx context.Context, userUID string) ([]*models.Trial, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История пробных периодов пользователя
// @Description Возвращает список пробных периодов пользователя, от новых к старым.
// @Tags Admin
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Success 200 {object} map[string]any "История пробных периодов"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/trial-history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.trialhistory"

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

	trials, err := h.service.History(r.Context(), targetUID)
	if err != nil {
		log.Error("failed to read trial history", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("trial history read", sl.UID(targetUID), slog.Int("count", len(trials)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"trials": trials,
	}))
}
