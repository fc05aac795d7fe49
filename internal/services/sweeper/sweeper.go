// Package sweeper реализует периодический фоновый обход: исполнение
// запланированных удалений учётных записей и перевод истёкших пробных
// периодов в статус expired. Оба действия идемпотентны, повторный обход
// уже обработанных записей ничего не меняет. Флаг is_active кампаний
// обход не трогает: фактическая активность вычисляется лениво при чтении.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Repository определяет методы хранилища, нужные фоновому обходу.
type Repository interface {
	FindUsersDueForDeletion(ctx context.Context, now time.Time) ([]*models.User, error)
	// SoftDeleteUser идемпотентна: удаление уже удалённого — no-op.
	SoftDeleteUser(ctx context.Context, userUID string, now time.Time) error
	ExpireDueTrials(ctx context.Context, now time.Time) ([]*models.Trial, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Notifier описывает интерфейс публикации уведомлений об истечении.
type Notifier interface {
	TrialExpired(msg models.TrialNotification) error
}

// Service выполняет обход по фиксированному интервалу.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, notifier Notifier, interval time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run запускает обход сразу и затем по тикеру до отмены контекста.
func (s *Service) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep выполняет один проход обхода.
func (s *Service) Sweep(ctx context.Context) {
	s.log.Info("starting sweep")
	now := s.now()
	s.expireTrials(ctx, now)
	s.executeDeletions(ctx, now)
}

func (s *Service) expireTrials(ctx context.Context, now time.Time) {
	expired, err := s.repo.ExpireDueTrials(ctx, now)
	if err != nil {
		s.log.Error("failed to expire due trials", sl.Err(err))
		return
	}
	if len(expired) == 0 {
		return
	}
	s.log.Info("expired trials", slog.Int("count", len(expired)))

	for _, t := range expired {
		user, err := s.repo.GetUser(ctx, t.UserUID)
		if err != nil {
			s.log.Error("failed to load user for expiry notification", sl.UID(t.UserUID), sl.Err(err))
			continue
		}
		if err := s.notifier.TrialExpired(models.TrialNotification{
			Email:    user.Email,
			Username: user.Username,
			Tier:     t.Tier,
			EndsAt:   t.EndsAt,
		}); err != nil {
			s.log.Error("failed to publish expiry notification", sl.UID(t.UserUID), sl.Err(err))
		}
	}
}

func (s *Service) executeDeletions(ctx context.Context, now time.Time) {
	due, err := s.repo.FindUsersDueForDeletion(ctx, now)
	if err != nil {
		s.log.Error("failed to find users due for deletion", sl.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Info("executing scheduled deletions", slog.Int("count", len(due)))

	for _, u := range due {
		if err := s.repo.SoftDeleteUser(ctx, u.UID, now); err != nil {
			s.log.Error("failed to soft-delete user", sl.UID(u.UID), sl.Err(err))
		}
	}
}
