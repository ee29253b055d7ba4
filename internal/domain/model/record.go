// Пакет model — доменные модели сервиса hookstore.
// Record — единая структура записи webhook, используется как
// in-memory представление и как формат JSON-конверта в хранилище.
package model

import (
	"encoding/json"
	"time"
)

// Record — запись webhook. Соответствует JSON-конверту в Valkey.
type Record struct {
	// Key — глобально уникальный ключ записи, формат "{category}:{uuid}"
	Key string `json:"key"`

	// Category — логическое пространство имён (префикс ключа)
	Category string `json:"category"`

	// Value — исходное тело webhook (сырой JSON, не переформатируется)
	Value json.RawMessage `json:"value"`

	// TTLSeconds — срок хранения в секундах, запрошенный при создании
	TTLSeconds int64 `json:"ttl"`

	// CreatedAt — дата и время создания (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt — дата истечения (created_at + ttl)
	ExpiresAt time.Time `json:"expires_at"`

	// SizeBytes — размер сериализованного тела в байтах
	SizeBytes int64 `json:"size_bytes"`

	// CallbackURL — URL для уведомлений (опционально)
	CallbackURL *string `json:"callback_url,omitempty"`
}

// IsExpired проверяет, истёк ли срок хранения записи.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// RemainingTTL возвращает оставшийся срок хранения в секундах.
// Для истёкших записей возвращает 0.
func (r *Record) RemainingTTL(now time.Time) int64 {
	remaining := int64(r.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Типы событий жизненного цикла.
const (
	// EventCreated — запись создана (create, replay, import)
	EventCreated = "webhook.created"
	// EventDeleted — запись удалена явным delete
	EventDeleted = "webhook.deleted"
	// EventWSReady — синтетическое подтверждение подключения WS-клиента
	EventWSReady = "webhook.ws_ready"
)

// Event — событие жизненного цикла записи. Не персистентно:
// публикуется в Pub/Sub канал ровно один раз на успешную мутацию,
// доставка — at-most-once только подключённым подписчикам.
type Event struct {
	// Type — тип события (webhook.created, webhook.deleted, webhook.ws_ready)
	Type string `json:"type"`

	// Data — полезная нагрузка события (category, key, ...)
	Data map[string]any `json:"data,omitempty"`

	// Timestamp — unix-время публикации
	Timestamp int64 `json:"timestamp"`
}

// ExportVersion — версия формата снапшота экспорта.
const ExportVersion = "1.0"

// ExportSnapshot — снапшот живых записей для export/import.
// Read-only проекция, собственного жизненного цикла не имеет.
type ExportSnapshot struct {
	// Version — версия формата снапшота
	Version string `json:"version"`

	// ExportedAt — unix-время экспорта
	ExportedAt int64 `json:"exported_at"`

	// Category — категория, если экспортировалась одна (опционально)
	Category string `json:"category,omitempty"`

	// Webhooks — экспортированные записи
	Webhooks []Record `json:"webhooks"`

	// TotalExported — количество записей в снапшоте
	TotalExported int `json:"total_exported"`
}

// CategoryStats — агрегированная статистика категории.
// Пересчитывается из живых записей, отдельно не хранится.
type CategoryStats struct {
	// Count — количество живых записей в категории
	Count int `json:"count"`

	// Size — суммарный размер живых записей в байтах
	Size int64 `json:"size"`
}
