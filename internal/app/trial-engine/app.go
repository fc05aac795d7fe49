// Package trialengine собирает основное приложение: хранилище, кэш,
// брокер уведомлений, бизнес-сервисы и HTTP-сервер.
package trialengine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	amqp "github.com/streadway/amqp"

	"github.com/codescribe-ai/trial-engine/internal/cache"
	"github.com/codescribe-ai/trial-engine/internal/config"
	"github.com/codescribe-ai/trial-engine/internal/lib/jwt"
	"github.com/codescribe-ai/trial-engine/internal/migrations"
	"github.com/codescribe-ai/trial-engine/internal/rabbitmq"
	analyticsservice "github.com/codescribe-ai/trial-engine/internal/services/analytics"
	authservice "github.com/codescribe-ai/trial-engine/internal/services/auth"
	campaignservice "github.com/codescribe-ai/trial-engine/internal/services/campaign"
	eligibilityservice "github.com/codescribe-ai/trial-engine/internal/services/eligibility"
	trialservice "github.com/codescribe-ai/trial-engine/internal/services/trial"
	useradminservice "github.com/codescribe-ai/trial-engine/internal/services/useradmin"
	"github.com/codescribe-ai/trial-engine/internal/storage/repository"
)

// App — основное приложение с HTTP-сервером и подключениями к инфраструктуре.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	amqp   *amqp.Connection
}

// New собирает приложение: подключает PostgreSQL, применяет миграции,
// подключает Redis и RabbitMQ, создаёт сервисы и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		return nil, err
	}
	notifier := rabbitmq.NewNotifier(ch)

	maker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	recorder := analyticsservice.NewRecorder(db, logger)
	evaluator := eligibilityservice.NewEvaluator(db, cfg.TrialPolicy, logger)
	campaigns := campaignservice.NewManager(db, cacheRedis, recorder, logger)
	trials := trialservice.NewService(db, evaluator, recorder, notifier, campaigns, logger)
	users := useradminservice.NewService(db, cfg.Sweeper.DeletionGraceDays, logger)
	auth := authservice.NewService(db, campaigns, recorder, maker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, maker, db, cfg.BillingWebhookSecret,
		cfg.RateLimitRPS, cfg.RateLimitBurst,
		auth, trials, campaigns, users)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		amqp:   conn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.amqp.Close()
		a.db.DB.Close()
		return err
	}
}
