// Package analytics записывает бизнес-события для атрибуции и отчётов.
// Запись выполняется по принципу best-effort: сбой никогда не влияет
// на исход бизнес-действия, ошибка только логируется. Этим рекордер
// намеренно отличается от журнала аудита, сбой которого фатален.
package analytics

import (
	"context"
	"log/slog"

	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// EventRepository определяет метод сохранения события в хранилище.
type EventRepository interface {
	InsertEvent(ctx context.Context, event models.AnalyticsEvent) error
}

// Recorder пишет аналитические события.
type Recorder struct {
	repo EventRepository
	log  *slog.Logger
}

// NewRecorder создает новый экземпляр Recorder.
func NewRecorder(repo EventRepository, log *slog.Logger) *Recorder {
	return &Recorder{
		repo: repo,
		log:  log,
	}
}

// Emit записывает событие. Ошибка записи логируется и поглощается.
func (r *Recorder) Emit(ctx context.Context, eventName, userUID string, meta models.EventMetadata) {
	event := models.AnalyticsEvent{
		EventName: eventName,
		UserUID:   userUID,
		Metadata:  meta,
	}
	if err := r.repo.InsertEvent(ctx, event); err != nil {
		r.log.Warn("failed to record analytics event",
			slog.String("event", eventName), sl.UID(userUID), sl.Err(err))
	}
}
