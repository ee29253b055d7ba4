// valkey.go — реализация Store поверх Valkey/Redis через go-redis.
//
// BoundedIncrBy выполняется Lua-скриптом на стороне сервера:
// проверка лимита и INCRBY — одна неделимая операция, поэтому
// конкурентные резервирования не могут совместно превысить бюджет.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua-скрипт атомарного инкремента с верхней границей.
// Возвращает {1, новое значение} при успехе, {0, текущее значение} при отказе.
var boundedIncrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local delta = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if current + delta > limit then
	return {0, current}
end
local total = redis.call('INCRBY', KEYS[1], delta)
return {1, total}
`)

// Lua-скрипт декремента с отсечкой в нуле.
var clampedDecrScript = redis.NewScript(`
local total = redis.call('DECRBY', KEYS[1], tonumber(ARGV[1]))
if total < 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return total
`)

// ValkeyStore — адаптер Valkey/Redis.
type ValkeyStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewValkey создаёт адаптер Valkey и проверяет соединение.
func NewValkey(ctx context.Context, addr string, db int, logger *slog.Logger) (*ValkeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("подключение к Valkey %s: %w", addr, err)
	}

	return &ValkeyStore{
		client: client,
		logger: logger.With(slog.String("component", "valkey_store")),
	}, nil
}

// PutWithTTL сохраняет значение через SET с EX.
func (s *ValkeyStore) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("SET %s: %w", key, err)
	}
	return nil
}

// Get возвращает значение или ErrNotFound.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GET %s: %w", key, err)
	}
	return val, nil
}

// Delete удаляет ключ через DEL.
func (s *ValkeyStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("DEL %s: %w", key, err)
	}
	return n > 0, nil
}

// BoundedIncrBy выполняет Lua-скрипт атомарного ограниченного инкремента.
func (s *ValkeyStore) BoundedIncrBy(ctx context.Context, counter string, delta, limit int64) (bool, int64, error) {
	res, err := boundedIncrScript.Run(ctx, s.client, []string{counter}, delta, limit).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("bounded INCRBY %s: %w", counter, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("bounded INCRBY %s: неожиданный ответ скрипта: %v", counter, res)
	}

	accepted, _ := res[0].(int64)
	total, _ := res[1].(int64)
	return accepted == 1, total, nil
}

// DecrBy выполняет Lua-скрипт декремента с отсечкой в нуле.
func (s *ValkeyStore) DecrBy(ctx context.Context, counter string, delta int64) (int64, error) {
	total, err := clampedDecrScript.Run(ctx, s.client, []string{counter}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("DECRBY %s: %w", counter, err)
	}
	return total, nil
}

// GetCounter возвращает значение счётчика (0 для несуществующего).
func (s *ValkeyStore) GetCounter(ctx context.Context, counter string) (int64, error) {
	val, err := s.client.Get(ctx, counter).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("GET %s: %w", counter, err)
	}
	return val, nil
}

// Scan перебирает ключи через SCAN MATCH, значения читает по одному.
// Ключи, истёкшие между SCAN и GET, молча пропускаются.
func (s *ValkeyStore) Scan(ctx context.Context, pattern string, fn func(key string, value []byte) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		val, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("GET %s при сканировании: %w", key, err)
		}

		if err := fn(key, val); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("SCAN %s: %w", pattern, err)
	}
	return nil
}

// Publish публикует сообщение через PUBLISH.
func (s *ValkeyStore) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("PUBLISH %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на канал через SUBSCRIBE.
// Горутина-адаптер переливает сообщения go-redis в канал байтовых срезов.
func (s *ValkeyStore) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	pubsub := s.client.Subscribe(ctx, channel)

	// Receive дожидается подтверждения подписки, чтобы вызывающий
	// не пропустил сообщения, опубликованные сразу после возврата.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("SUBSCRIBE %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			// Не блокируемся навечно на остановившемся потребителе:
			// cancel разблокирует горутину даже при заполненном буфере
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("Ошибка закрытия подписки",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
	}

	return out, cancel, nil
}

// Ping проверяет доступность Valkey.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает соединение с Valkey.
func (s *ValkeyStore) Close() error {
	return s.client.Close()
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ Store = (*ValkeyStore)(nil)
