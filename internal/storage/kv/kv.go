// Пакет kv — адаптер внешнего key-value хранилища с TTL и Pub/Sub.
//
// Контракт адаптера — минимальный набор примитивов, на которых
// строится весь движок:
//   - PutWithTTL / Get / Delete — записи с пассивным истечением TTL;
//   - BoundedIncrBy — атомарный инкремент счётчика с верхней границей,
//     единственный примитив конкурентной безопасности квоты;
//   - Publish / Subscribe — канал событий жизненного цикла.
//
// Две реализации: ValkeyStore (Valkey/Redis, продакшен) и
// MemoryStore (in-memory, тесты и автономный режим).
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound — ключ отсутствует в хранилище (или истёк его TTL).
var ErrNotFound = errors.New("ключ не найден")

// Store — интерфейс внешнего хранилища.
type Store interface {
	// PutWithTTL сохраняет значение с указанным сроком хранения.
	// Существующее значение перезаписывается, TTL устанавливается заново.
	PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get возвращает значение по ключу или ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete удаляет ключ. Возвращает true, если ключ существовал.
	Delete(ctx context.Context, key string) (bool, error)

	// BoundedIncrBy атомарно увеличивает счётчик на delta, но только если
	// итог не превысит limit. Проверка и применение — одна неделимая
	// операция: при отказе счётчик не меняется (частичное применение
	// невозможно). Возвращает (принято, текущее значение).
	BoundedIncrBy(ctx context.Context, counter string, delta, limit int64) (bool, int64, error)

	// DecrBy атомарно уменьшает счётчик на delta с отсечкой в нуле:
	// счётчик никогда не становится отрицательным.
	DecrBy(ctx context.Context, counter string, delta int64) (int64, error)

	// GetCounter возвращает текущее значение счётчика (0, если не существует).
	GetCounter(ctx context.Context, counter string) (int64, error)

	// Scan перебирает живые ключи по шаблону (glob-синтаксис '*'),
	// вызывая fn для каждой пары ключ-значение. Ошибка fn прерывает перебор.
	Scan(ctx context.Context, pattern string, fn func(key string, value []byte) error) error

	// Publish публикует сообщение в канал. Доставка best-effort:
	// сообщение получают только текущие подписчики.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe подписывается на канал. Возвращает канал сообщений и
	// функцию отписки. После отписки канал сообщений закрывается.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)

	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error

	// Close освобождает ресурсы адаптера.
	Close() error
}
