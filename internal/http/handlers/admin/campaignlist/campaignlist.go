// Package campaignlist реализует HTTP-обработчик просмотра списка
// промо-кампаний с пагинацией.
package campaignlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами на чтение списка кампаний.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики кампаний
}

// Service описывает интерфейс чтения списка кампаний.
type Service interface {
	List(ctx context.Context, limit, offset int) ([]*models.Campaign, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список промо-кампаний
// @Description Возвращает страницу кампаний, от новых к старым.
// @Tags Admin
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 10)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Список кампаний"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/campaigns [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.campaignlist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	campaigns, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list campaigns", sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("campaigns listed", slog.Int("count", len(campaigns)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(campaigns),
		"campaigns":  campaigns,
	}))
}
