// Package auth реализует регистрацию и вход пользователей с выдачей
// JWT токена. Роли хранятся колонкой в таблице users, доступ к
// административному API определяется ролью, а не списком адресов.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/jwt"
	"github.com/codescribe-ai/trial-engine/internal/lib/password"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Repository определяет методы хранилища, нужные сервису аутентификации.
type Repository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// CampaignManager описывает хук выдачи пробного периода при регистрации.
type CampaignManager interface {
	OnSignup(ctx context.Context, user *models.User)
}

// Recorder описывает интерфейс записи аналитических событий.
type Recorder interface {
	Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata)
}

// Service реализует регистрацию и вход.
type Service struct {
	repo      Repository
	campaigns CampaignManager
	recorder  Recorder
	maker     jwt.Maker
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, campaigns CampaignManager, recorder Recorder, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		campaigns: campaigns,
		recorder:  recorder,
		maker:     maker,
		log:       log,
	}
}

// Register создаёт пользователя и возвращает его UID. После создания
// срабатывает хук кампании: при активной кампании новый пользователь
// автоматически получает пробный период; сбой хука не отменяет
// регистрацию.
func (s *Service) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	uid, err := s.repo.RegisterUser(ctx, models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Tier:         "free",
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", sl.UID(uid), slog.String("username", req.Username))
	s.recorder.Emit(ctx, models.EventSignup, uid, models.EventMetadata{Action: "registered"})

	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		s.log.Error("failed to reload user for campaign hook", sl.UID(uid), sl.Err(err))
		return uid, nil
	}
	s.campaigns.OnSignup(ctx, user)

	return uid, nil
}

// Login проверяет учётные данные и возвращает JWT токен.
func (s *Service) Login(ctx context.Context, req models.DummyLogin) (string, error) {
	const op = "auth.Login"

	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return "", apperr.Forbidden("invalid username or password")
	}
	if user.Suspended {
		return "", apperr.Forbidden("account is suspended")
	}
	if user.DeletedAt != nil {
		return "", apperr.Forbidden("account is deleted")
	}

	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", apperr.Forbidden("invalid username or password")
	}

	token, err := s.maker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", sl.UID(user.UID))
	return token, nil
}
