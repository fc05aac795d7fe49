package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codescribe-ai/trial-engine/internal/models"
)

// insertAuditEntry пишет запись аудита внутри уже открытой транзакции.
// Все мутирующие методы хранилища обязаны вызывать её до коммита: сбой
// записи аудита откатывает транзакцию целиком.
func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry models.AuditLogEntry) error {
	const op = "storage.insertAuditEntry"

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO audit_log (user_uid, changed_by, field_name, old_value, new_value, reason, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query,
		entry.UserUID, entry.ChangedBy, entry.FieldName,
		entry.OldValue, entry.NewValue, entry.Reason, metadata); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAuditForUser возвращает записи аудита пользователя, новые первыми.
func (s *Storage) ListAuditForUser(ctx context.Context, userUID string, limit, offset int) ([]*models.AuditLogEntry, error) {
	const op = "storage.ListAuditForUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, changed_by, field_name, old_value, new_value, reason, metadata, created_at
			  FROM audit_log
			  WHERE user_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var metadata []byte
		var createdAt time.Time
		if err = rows.Scan(&e.ID, &e.UserUID, &e.ChangedBy, &e.FieldName,
			&e.OldValue, &e.NewValue, &e.Reason, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var meta map[string]any
		if err = json.Unmarshal(metadata, &meta); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Metadata = meta
		e.CreatedAt = createdAt
		result = append(result, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
