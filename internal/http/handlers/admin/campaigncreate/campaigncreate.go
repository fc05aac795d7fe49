// Package campaigncreate реализует HTTP-обработчик создания маркетинговой
// кампании. Кампания создаётся неактивной; включение выполняется отдельной
// операцией переключения.
package campaigncreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Handler управляет HTTP-запросами на создание кампаний.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики кампаний
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс создания кампании.
type Service interface {
	Create(ctx context.Context, req models.DummyCampaign) (*models.Campaign, error)
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
// @Summary Создать кампанию
// @Description Создаёт новую маркетинговую кампанию в неактивном состоянии.
// @Tags Campaigns
// @Accept  json
// @Produce  json
// @Param request body models.DummyCampaign true "Параметры кампании"
// @Success 200 {object} map[string]any "Кампания создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или даты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/campaigns [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.campaigncreate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCampaign
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

	campaign, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create campaign", sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("campaign created", slog.Int("campaign_id", campaign.ID), slog.String("name", campaign.Name))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"campaign": campaign,
	}))
}
