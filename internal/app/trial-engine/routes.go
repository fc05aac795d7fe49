// Package trialengine предоставляет маршруты для основного приложения.
package trialengine

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/audithistory"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/campaigncreate"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/campaignexport"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/campaignlist"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/campaigntoggle"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/deletion"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/granttrial"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/suspend"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/trialhistory"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/admin/updaterole"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/auth/login"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/auth/register"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/billing/webhook"
	"github.com/codescribe-ai/trial-engine/internal/http/handlers/health"
	"github.com/codescribe-ai/trial-engine/internal/http/middlewarectx"
	"github.com/codescribe-ai/trial-engine/internal/lib/jwt"
	authservice "github.com/codescribe-ai/trial-engine/internal/services/auth"
	campaignservice "github.com/codescribe-ai/trial-engine/internal/services/campaign"
	trialservice "github.com/codescribe-ai/trial-engine/internal/services/trial"
	useradminservice "github.com/codescribe-ai/trial-engine/internal/services/useradmin"
	"github.com/codescribe-ai/trial-engine/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker,
	db *repository.Storage, webhookSecret string, rateLimitRPS float64, rateLimitBurst int,
	auth *authservice.Service, trials *trialservice.Service,
	campaigns *campaignservice.Manager, users *useradminservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, auth).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Группа административных операций
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.AdminOnlyMiddleware(logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, rateLimitRPS, rateLimitBurst))

			r.Post("/admin/users/{userUID}/grant-trial", granttrial.New(logger, trials).ServeHTTP)
			r.Get("/admin/users/{userUID}/trial-history", trialhistory.New(logger, trials).ServeHTTP)
			r.Post("/admin/users/{userUID}/role", updaterole.New(logger, users).ServeHTTP)

			suspendHandler := suspend.New(logger, users)
			r.Post("/admin/users/{userUID}/suspend", suspendHandler.Suspend)
			r.Post("/admin/users/{userUID}/unsuspend", suspendHandler.Unsuspend)

			deletionHandler := deletion.New(logger, users)
			r.Post("/admin/users/{userUID}/schedule-deletion", deletionHandler.Schedule)
			r.Post("/admin/users/{userUID}/cancel-deletion", deletionHandler.Cancel)

			r.Get("/admin/users/{userUID}/audit-log", audithistory.New(logger, users).ServeHTTP)

			r.Post("/admin/campaigns", campaigncreate.New(logger, campaigns).ServeHTTP)
			r.Get("/admin/campaigns", campaignlist.New(logger, campaigns).ServeHTTP)
			r.Post("/admin/campaigns/{id}/toggle", campaigntoggle.New(logger, campaigns).ServeHTTP)
			r.Get("/admin/campaigns/export", campaignexport.New(logger, campaigns).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись проверяется отдельно)
		r.Post("/billing/webhook", webhook.New(logger, trials, webhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
