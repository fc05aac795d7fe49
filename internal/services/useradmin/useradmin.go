// Package useradmin реализует административные операции над учётными
// записями: смену роли, блокировку, планирование и отмену удаления.
// Каждая мутация фиксируется записью аудита в одной транзакции с ней.
package useradmin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Минимальная длина обоснования административного действия.
const minReasonLen = 5

// Repository определяет методы хранилища, нужные сервису администрирования.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateRole(ctx context.Context, userUID, newRole string, entry models.AuditLogEntry) error
	SetSuspended(ctx context.Context, userUID string, suspended bool, reason string, entry models.AuditLogEntry) error
	ScheduleDeletion(ctx context.Context, userUID string, scheduledFor time.Time, entry models.AuditLogEntry) error
	// CancelDeletion идемпотентна: без запланированного удаления —
	// no-op без записи аудита, changed = false.
	CancelDeletion(ctx context.Context, userUID string, entry models.AuditLogEntry) (bool, error)
	ListAuditForUser(ctx context.Context, userUID string, limit, offset int) ([]*models.AuditLogEntry, error)
}

// Service реализует административные операции над пользователями.
type Service struct {
	repo              Repository
	deletionGraceDays int
	log               *slog.Logger
	now               func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, deletionGraceDays int, log *slog.Logger) *Service {
	return &Service{
		repo:              repo,
		deletionGraceDays: deletionGraceDays,
		log:               log,
		now:               time.Now,
	}
}

// UpdateRole меняет роль пользователя. Администратор не может понизить
// самого себя до user: самоблокировка доступа запрещена независимо от
// обоснования.
func (s *Service) UpdateRole(ctx context.Context, adminUID, targetUID, newRole, reason string) error {
	if err := validateReason(reason); err != nil {
		return err
	}
	if adminUID == targetUID && newRole == models.RoleUser {
		return apperr.Forbidden("admins cannot demote themselves")
	}

	user, err := s.repo.GetUser(ctx, targetUID)
	if err != nil {
		return err
	}
	if user.Role == newRole {
		return apperr.Validation("user already has this role")
	}

	entry := models.AuditLogEntry{
		UserUID:   targetUID,
		ChangedBy: adminUID,
		FieldName: "role",
		OldValue:  user.Role,
		NewValue:  newRole,
		Reason:    reason,
		Metadata:  models.RoleMetadata{PreviousRole: user.Role, NewRole: newRole},
	}
	if err := s.repo.UpdateRole(ctx, targetUID, newRole, entry); err != nil {
		return err
	}

	s.log.Info("user role updated", sl.UID(targetUID),
		slog.String("old_role", user.Role), slog.String("new_role", newRole))
	return nil
}

// Suspend блокирует учётную запись пользователя.
func (s *Service) Suspend(ctx context.Context, adminUID, targetUID, reason string) error {
	return s.setSuspended(ctx, adminUID, targetUID, reason, true)
}

// Unsuspend снимает блокировку учётной записи.
func (s *Service) Unsuspend(ctx context.Context, adminUID, targetUID, reason string) error {
	return s.setSuspended(ctx, adminUID, targetUID, reason, false)
}

func (s *Service) setSuspended(ctx context.Context, adminUID, targetUID, reason string, suspended bool) error {
	if err := validateReason(reason); err != nil {
		return err
	}

	user, err := s.repo.GetUser(ctx, targetUID)
	if err != nil {
		return err
	}
	if user.Suspended == suspended {
		if suspended {
			return apperr.Validation("user is already suspended")
		}
		return apperr.Validation("user is not suspended")
	}

	entry := models.AuditLogEntry{
		UserUID:   targetUID,
		ChangedBy: adminUID,
		FieldName: "suspended",
		OldValue:  boolValue(user.Suspended),
		NewValue:  boolValue(suspended),
		Reason:    reason,
		Metadata:  models.SuspendMetadata{Suspended: suspended},
	}
	if err := s.repo.SetSuspended(ctx, targetUID, suspended, reason, entry); err != nil {
		return err
	}

	s.log.Info("user suspension changed", sl.UID(targetUID), slog.Bool("suspended", suspended))
	return nil
}

// ScheduleDeletion назначает удаление учётной записи по истечении
// периода ожидания.
func (s *Service) ScheduleDeletion(ctx context.Context, adminUID, targetUID, reason string) (*time.Time, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, targetUID)
	if err != nil {
		return nil, err
	}
	if user.DeletionScheduledAt != nil {
		return nil, apperr.Validation("deletion is already scheduled")
	}

	scheduledFor := s.now().AddDate(0, 0, s.deletionGraceDays)
	entry := models.AuditLogEntry{
		UserUID:   targetUID,
		ChangedBy: adminUID,
		FieldName: "deletion",
		OldValue:  "",
		NewValue:  scheduledFor.Format(time.RFC3339),
		Reason:    reason,
		Metadata:  models.DeletionMetadata{ScheduledFor: &scheduledFor},
	}
	if err := s.repo.ScheduleDeletion(ctx, targetUID, scheduledFor, entry); err != nil {
		return nil, err
	}

	s.log.Info("user deletion scheduled", sl.UID(targetUID),
		slog.Time("scheduled_for", scheduledFor))
	return &scheduledFor, nil
}

// CancelDeletion отменяет запланированное удаление. Идемпотентна: если
// удаление не было запланировано, операция завершается успешно без
// изменений и без записи аудита.
func (s *Service) CancelDeletion(ctx context.Context, adminUID, targetUID, reason string) error {
	if err := validateReason(reason); err != nil {
		return err
	}

	user, err := s.repo.GetUser(ctx, targetUID)
	if err != nil {
		return err
	}

	entry := models.AuditLogEntry{
		UserUID:   targetUID,
		ChangedBy: adminUID,
		FieldName: "deletion",
		OldValue:  formatTimePtr(user.DeletionScheduledAt),
		NewValue:  "",
		Reason:    reason,
		Metadata:  models.DeletionMetadata{},
	}
	changed, err := s.repo.CancelDeletion(ctx, targetUID, entry)
	if err != nil {
		return err
	}
	if !changed {
		s.log.Info("no deletion scheduled, cancel is a no-op", sl.UID(targetUID))
		return nil
	}

	s.log.Info("user deletion cancelled", sl.UID(targetUID))
	return nil
}

// AuditHistory возвращает страницу записей аудита пользователя,
// новые первыми. Пользователь должен существовать.
func (s *Service) AuditHistory(ctx context.Context, targetUID string, limit, offset int) ([]*models.AuditLogEntry, error) {
	const op = "useradmin.AuditHistory"

	if _, err := s.repo.GetUser(ctx, targetUID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListAuditForUser(ctx, targetUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func validateReason(reason string) error {
	if len(reason) < minReasonLen {
		return apperr.Validation("reason must be at least 5 characters")
	}
	return nil
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
