// Package campaignexport реализует HTTP-обработчик экспорта аналитики
// кампаний за отчётный период. Период задаётся query-параметрами start_date
// и end_date в формате YYYY-MM-DD, источник — необязательным параметром source.
package campaignexport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами экспорта аналитики кампаний.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики кампаний
}

// Service описывает интерфейс построения экспортного отчёта.
type Service interface {
	Export(ctx context.Context, startDate, endDate, campaignSource string) (*models.ExportReport, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Экспорт аналитики кампаний
// @Description Возвращает агрегированный отчёт по выдачам и конверсиям за период.
// @Tags Campaigns
// @Produce  json
// @Param start_date query string true "Начало периода, YYYY-MM-DD"
// @Param end_date query string true "Конец периода, YYYY-MM-DD"
// @Param source query string false "Фильтр по источнику выдачи"
// @Success 200 {object} map[string]any "Экспортный отчёт"
// @Failure 400 {object} response.ErrorResponse "Некорректные даты периода"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/campaigns/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.campaignexport"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")
	source := r.URL.Query().Get("source")

	report, err := h.service.Export(r.Context(), startDate, endDate, source)
	if err != nil {
		log.Error("failed to build export report", sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("export report built",
		slog.String("start_date", report.StartDate),
		slog.String("end_date", report.EndDate),
		slog.Int("total_trials", report.TotalTrials))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"report": report,
	}))
}
