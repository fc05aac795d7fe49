// Package campaigntoggle реализует HTTP-обработчик переключения активности
// кампании. Попытка включить вторую кампанию при уже активной завершается
// HTTP 409 Conflict.
package campaigntoggle

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами на переключение кампаний.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики кампаний
}

// Service описывает интерфейс переключения активности кампании.
type Service interface {
	Toggle(ctx context.Context, id int) (*models.Campaign, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Переключить активность кампании
// @Description Включает или выключает кампанию. Одновременно может быть активна только одна кампания.
// @Tags Campaigns
// @Produce  json
// @Param id path int true "Идентификатор кампании"
// @Success 200 {object} map[string]any "Новое состояние кампании"
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 404 {object} response.ErrorResponse "Кампания не найдена"
// @Failure 409 {object} response.ErrorResponse "Другая кампания уже активна"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/campaigns/{id}/toggle [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.campaigntoggle"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid campaign id in url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid campaign id"))
		return
	}

	campaign, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		log.Error("failed to toggle campaign", slog.Int("campaign_id", id), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("campaign toggled", slog.Int("campaign_id", id), slog.Bool("is_active", campaign.IsActive))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"campaign": campaign,
	}))
}
