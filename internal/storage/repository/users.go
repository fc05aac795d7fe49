package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// RegisterUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (email, username, password_hash, role, tier)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role, user.Tier).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

const userColumns = `uid, email, username, password_hash, role, tier, suspended,
			      suspended_reason, suspended_at, deletion_scheduled_at, deleted_at,
			      trial_tier, trial_ends_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var suspendedReason, trialTier sql.NullString
	var suspendedAt, deletionScheduledAt, deletedAt, trialEndsAt sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.Tier,
		&u.Suspended, &suspendedReason, &suspendedAt, &deletionScheduledAt, &deletedAt,
		&trialTier, &trialEndsAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	if suspendedReason.Valid {
		u.SuspendedReason = &suspendedReason.String
	}
	if suspendedAt.Valid {
		u.SuspendedAt = &suspendedAt.Time
	}
	if deletionScheduledAt.Valid {
		u.DeletionScheduledAt = &deletionScheduledAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	if trialTier.Valid {
		u.TrialTier = &trialTier.String
	}
	if trialEndsAt.Valid {
		u.TrialEndsAt = &trialEndsAt.Time
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateRole меняет роль пользователя и пишет запись аудита в той же
// транзакции: без записи аудита смена роли не фиксируется.
func (s *Storage) UpdateRole(ctx context.Context, userUID, newRole string, entry models.AuditLogEntry) error {
	const op = "storage.UpdateRole"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE users SET role = $1 WHERE uid = $2`, newRole, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return apperr.NotFound("user not found")
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetSuspended выставляет или снимает блокировку учётной записи,
// записывая аудит в той же транзакции.
func (s *Storage) SetSuspended(ctx context.Context, userUID string, suspended bool, reason string, entry models.AuditLogEntry) error {
	const op = "storage.SetSuspended"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var res sql.Result
	if suspended {
		res, err = tx.ExecContext(ctx, `UPDATE users
			  SET suspended = TRUE, suspended_reason = $1, suspended_at = now()
			  WHERE uid = $2`, reason, userUID)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE users
			  SET suspended = FALSE, suspended_reason = NULL, suspended_at = NULL
			  WHERE uid = $1`, userUID)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return apperr.NotFound("user not found")
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ScheduleDeletion назначает дату удаления учётной записи с аудитом
// в той же транзакции.
func (s *Storage) ScheduleDeletion(ctx context.Context, userUID string, scheduledFor time.Time, entry models.AuditLogEntry) error {
	const op = "storage.ScheduleDeletion"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE users SET deletion_scheduled_at = $1 WHERE uid = $2`,
		scheduledFor, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return apperr.NotFound("user not found")
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CancelDeletion снимает запланированное удаление. Операция идемпотентна:
// если удаление не было запланировано, ничего не меняется, запись аудита
// не создаётся, возвращается changed = false.
func (s *Storage) CancelDeletion(ctx context.Context, userUID string, entry models.AuditLogEntry) (bool, error) {
	const op = "storage.CancelDeletion"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE users
		  SET deletion_scheduled_at = NULL
		  WHERE uid = $1 AND deletion_scheduled_at IS NOT NULL`, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// FindUsersDueForDeletion возвращает пользователей, чья дата удаления
// наступила и которые ещё не удалены.
func (s *Storage) FindUsersDueForDeletion(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "storage.FindUsersDueForDeletion"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE deletion_scheduled_at IS NOT NULL
			    AND deletion_scheduled_at <= $1
			    AND deleted_at IS NULL`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SoftDeleteUser выполняет мягкое удаление пользователя. Идемпотентна:
// повторное удаление уже удалённого пользователя — no-op.
func (s *Storage) SoftDeleteUser(ctx context.Context, userUID string, now time.Time) error {
	const op = "storage.SoftDeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET deleted_at = $1, deletion_scheduled_at = NULL
			  WHERE uid = $2 AND deleted_at IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, now, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
