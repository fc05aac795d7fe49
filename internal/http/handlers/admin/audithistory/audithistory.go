// Package audithistory реализует HTTP-обработчик просмотра журнала аудита
// административных действий над учётной записью пользователя.
package audithistory

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

// Handler управляет HTTP-запросами на чтение журнала аудита.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис администрирования пользователей
}

// Service описывает интерфейс чтения журнала аудита пользователя.
type Service interface {
	AuditHistory(ctx context.Context, targetUID string, limit, offset int) ([]*models.AuditLogEntry, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Журнал аудита пользователя
// @Description Возвращает записи аудита административных действий над пользователем, от новых к старым.
// @Tags Admin
// @Produce  json
// @Param userUID path string true "UID пользователя"
// @Param limit query int false "Размер страницы (по умолчанию 10)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Записи аудита"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/users/{userUID}/audit-log [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.audithistory"

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

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, err := h.service.AuditHistory(r.Context(), targetUID, limit, offset)
	if err != nil {
		log.Error("failed to read audit history", sl.UID(targetUID), sl.Err(err))
		response.RenderDomainError(w, r, err)
		return
	}

	log.Info("audit history read", sl.UID(targetUID), slog.Int("count", len(entries)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(entries),
		"entries":    entries,
	}))
}
