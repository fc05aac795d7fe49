// Package repository реализует хранилище данных на основе PostgreSQL
// для движка пробных периодов: пользователи, пробные периоды, кампании,
// журнал аудита и аналитические события. Все мутации выполняются в
// транзакциях; запись аудита всегда идёт в одной транзакции с самим
// изменением. Решения о допуске и активности кампаний никогда не
// кешируются — каждое обращение читает актуальное состояние.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Имена частичных уникальных индексов, закрепляющих инварианты схемы.
const (
	constraintOneActiveTrial       = "one_active_trial_per_user"
	constraintSingleActiveCampaign = "single_active_campaign"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'trials'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table trials missing or query error: %w", err)
	}
	return nil
}

// violatesIndex сообщает, вызвана ли ошибка нарушением конкретного
// уникального индекса. Используется для перевода гонок в доменные
// конфликты вместо непрозрачной ошибки драйвера.
func violatesIndex(err error, indexName string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == indexName
}

// rollback откатывает транзакцию, не затирая исходную ошибку.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
