// Пакет events — публикация событий жизненного цикла записей.
//
// События публикуются в фиксированный Pub/Sub канал webhook:events
// ровно один раз на успешную мутацию. Публикация fire-and-forget:
// её ошибка логируется, но никогда не проваливает и не откатывает
// вызвавшую мутацию. Доставка at-most-once, только текущим подписчикам.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bigkaa/hookstore/internal/domain/model"
)

// Channel — фиксированное имя канала событий.
const Channel = "webhook:events"

// Publisher — подмножество kv.Store, нужное эмиттеру.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Emitter — эмиттер событий жизненного цикла.
type Emitter struct {
	store  Publisher
	logger *slog.Logger
}

// New создаёт эмиттер, публикующий в канал Channel.
func New(store Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:  store,
		logger: logger.With(slog.String("component", "events")),
	}
}

// EmitCreated публикует webhook.created после успешного создания записи
// (create, replay, import).
func (e *Emitter) EmitCreated(ctx context.Context, category, key string, size int64) {
	e.emit(ctx, model.Event{
		Type: model.EventCreated,
		Data: map[string]any{
			"category":   category,
			"key":        key,
			"size_bytes": size,
		},
		Timestamp: time.Now().Unix(),
	})
}

// EmitDeleted публикует webhook.deleted после успешного явного удаления.
func (e *Emitter) EmitDeleted(ctx context.Context, category, key string) {
	e.emit(ctx, model.Event{
		Type: model.EventDeleted,
		Data: map[string]any{
			"category": category,
			"key":      key,
		},
		Timestamp: time.Now().Unix(),
	})
}

// emit сериализует и публикует событие. Ошибки только логируются.
func (e *Emitter) emit(ctx context.Context, event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Ошибка сериализации события",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := e.store.Publish(ctx, Channel, payload); err != nil {
		e.logger.Warn("Ошибка публикации события",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}
