// memory.go — in-memory реализация Store.
//
// Используется в тестах и в автономном режиме (WH_STORE=memory),
// когда Valkey недоступен или не нужен. Семантика повторяет Valkey:
// пассивное истечение TTL (ключ исчезает при первом обращении после
// expires_at), атомарный ограниченный инкремент под общим мьютексом,
// best-effort Pub/Sub c локальным fan-out.
package kv

import (
	"context"
	"path"
	"sync"
	"time"
)

// memoryEntry — значение с меткой истечения.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// expired проверяет, истёк ли TTL записи.
func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore — потокобезопасное in-memory хранилище.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]memoryEntry
	counters map[string]int64
	subs     map[string]map[chan []byte]struct{}
	closed   bool

	// now подменяется в тестах для контроля времени.
	now func() time.Time
}

// NewMemory создаёт пустое in-memory хранилище.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]memoryEntry),
		counters: make(map[string]int64),
		subs:     make(map[string]map[chan []byte]struct{}),
		now:      time.Now,
	}
}

// PutWithTTL сохраняет значение с указанным сроком хранения.
func (s *MemoryStore) PutWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.data[key] = memoryEntry{value: copied, expiresAt: expiresAt}
	return nil
}

// Get возвращает значение или ErrNotFound. Истёкшие ключи удаляются лениво.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		delete(s.data, key)
		return nil, ErrNotFound
	}

	copied := make([]byte, len(entry.value))
	copy(copied, entry.value)
	return copied, nil
}

// Delete удаляет ключ. Истёкший ключ считается несуществующим.
func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return false, nil
	}
	delete(s.data, key)
	if entry.expired(s.now()) {
		return false, nil
	}
	return true, nil
}

// BoundedIncrBy атомарно увеличивает счётчик, если итог не превышает limit.
// Проверка и применение выполняются под одним захватом мьютекса.
func (s *MemoryStore) BoundedIncrBy(_ context.Context, counter string, delta, limit int64) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counters[counter]
	if current+delta > limit {
		return false, current, nil
	}
	s.counters[counter] = current + delta
	return true, current + delta, nil
}

// DecrBy уменьшает счётчик с отсечкой в нуле.
func (s *MemoryStore) DecrBy(_ context.Context, counter string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.counters[counter] - delta
	if total < 0 {
		total = 0
	}
	s.counters[counter] = total
	return total, nil
}

// GetCounter возвращает значение счётчика (0 для несуществующего).
func (s *MemoryStore) GetCounter(_ context.Context, counter string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counter], nil
}

// Scan перебирает живые ключи по glob-шаблону.
// fn вызывается вне мьютекса: снимок собирается заранее.
func (s *MemoryStore) Scan(_ context.Context, pattern string, fn func(key string, value []byte) error) error {
	type pair struct {
		key   string
		value []byte
	}

	s.mu.Lock()
	now := s.now()
	snapshot := make([]pair, 0, len(s.data))
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		copied := make([]byte, len(entry.value))
		copy(copied, entry.value)
		snapshot = append(snapshot, pair{key: key, value: copied})
	}
	s.mu.Unlock()

	for _, p := range snapshot {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// Publish рассылает сообщение текущим подписчикам канала.
// Подписчик с переполненным буфером пропускает сообщение (at-most-once).
func (s *MemoryStore) Publish(_ context.Context, channel string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe регистрирует подписчика канала.
func (s *MemoryStore) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, 64)
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[chan []byte]struct{})
	}
	s.subs[channel][ch] = struct{}{}

	// Закрываем канал только если подписка ещё числится в карте:
	// Close() мог закрыть его раньше.
	cancel := func() {
		s.mu.Lock()
		_, registered := s.subs[channel][ch]
		if registered {
			delete(s.subs[channel], ch)
		}
		s.mu.Unlock()
		if registered {
			close(ch)
		}
	}

	return ch, cancel, nil
}

// Ping всегда успешен для in-memory хранилища.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close очищает хранилище и закрывает каналы подписчиков.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, chans := range s.subs {
		for ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[string]map[chan []byte]struct{})
	s.data = make(map[string]memoryEntry)
	return nil
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ Store = (*MemoryStore)(nil)
