// Пакет index — потокобезопасный in-memory индекс живых записей.
//
// Индекс строится при старте из сканирования хранилища (Rebuild)
// и обновляется синхронно при операциях записи (Add, Remove).
// Обслуживает листинг по категориям с фильтром since, полнотекстовый
// поиск (case-insensitive подстрока по сериализованному значению)
// и агрегатную статистику категорий без обращений к хранилищу.
//
// Пассивно истёкшие записи отфильтровываются при чтении и удаляются
// фоновой сверкой (PruneExpired); индекс отражает только живые записи.
//
// Не персистентный: при рестарте пересобирается из хранилища.
package index

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/hookstore/internal/domain/model"
)

// Entry — элемент индекса: метаданные записи плюс нормализованное
// значение для поиска.
type Entry struct {
	// Key — полный ключ записи ("{category}:{uuid}")
	Key string
	// Category — категория записи
	Category string
	// Size — размер сериализованного значения в байтах
	Size int64
	// CreatedAt — время создания
	CreatedAt time.Time
	// ExpiresAt — время истечения TTL
	ExpiresAt time.Time
	// ValueLower — значение в нижнем регистре (для substring-поиска)
	ValueLower string
}

// expired проверяет, истёк ли TTL элемента.
func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Index — потокобезопасный индекс живых записей.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*Entry // key → entry
	ready   bool
	logger  *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите Rebuild.
func New(logger *slog.Logger) *Index {
	return &Index{
		entries: make(map[string]*Entry),
		logger:  logger.With(slog.String("component", "index")),
	}
}

// NewEntry собирает элемент индекса из доменной записи.
func NewEntry(rec *model.Record) Entry {
	return Entry{
		Key:        rec.Key,
		Category:   rec.Category,
		Size:       rec.SizeBytes,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
		ValueLower: strings.ToLower(string(rec.Value)),
	}
}

// Rebuild заменяет содержимое индекса новым набором элементов.
// Вызывается при старте и фоновой сверкой. После первого успешного
// Rebuild индекс помечается как ready.
func (idx *Index) Rebuild(entries []Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		idx.entries[e.Key] = &e
	}
	idx.ready = true

	idx.logger.Info("Индекс записей построен", slog.Int("records", len(idx.entries)))
}

// Reconcile заменяет содержимое индекса результатом сканирования
// хранилища. Элементы, добавленные в индекс начиная с scanStart,
// сохраняются: сканирование могло их не застать.
func (idx *Index) Reconcile(entries []Entry, scanStart time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fresh := make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		fresh[e.Key] = &e
	}
	for key, e := range idx.entries {
		if _, ok := fresh[key]; ok {
			continue
		}
		if !e.CreatedAt.Before(scanStart) {
			fresh[key] = e
		}
	}
	idx.entries = fresh
	idx.ready = true

	idx.logger.Info("Индекс записей сверен", slog.Int("records", len(idx.entries)))
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет элемент в индекс. Существующий ключ перезаписывается.
func (idx *Index) Add(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[e.Key] = &e
}

// Remove удаляет ключ из индекса. Возвращает true, если ключ был найден.
func (idx *Index) Remove(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[key]; !ok {
		return false
	}
	delete(idx.entries, key)
	return true
}

// Get возвращает копию элемента или nil для отсутствующего/истёкшего ключа.
func (idx *Index) Get(key string) *Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil
	}
	copied := *e
	return &copied
}

// List возвращает ключи живых записей, отсортированные по времени
// создания (новые первыми).
// category == "" — все категории; since — минимальное время создания.
func (idx *Index) List(category string, since time.Time) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	now := time.Now()
	matched := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.expired(now) {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		if !since.IsZero() && e.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	keys := make([]string, 0, len(matched))
	for _, e := range matched {
		keys = append(keys, e.Key)
	}
	return keys
}

// Search возвращает ключи живых записей, значение которых содержит q
// как подстроку без учёта регистра. Ранжирования нет.
func (idx *Index) Search(q string) []string {
	needle := strings.ToLower(q)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0)
	for _, e := range idx.entries {
		if e.expired(now) {
			continue
		}
		if strings.Contains(e.ValueLower, needle) {
			keys = append(keys, e.Key)
		}
	}

	sort.Strings(keys)
	return keys
}

// Stats возвращает количество живых записей и статистику по категориям.
func (idx *Index) Stats() (int, map[string]model.CategoryStats) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	now := time.Now()
	total := 0
	categories := make(map[string]model.CategoryStats)
	for _, e := range idx.entries {
		if e.expired(now) {
			continue
		}
		total++
		stats := categories[e.Category]
		stats.Count++
		stats.Size += e.Size
		categories[e.Category] = stats
	}
	return total, categories
}

// Count возвращает количество живых записей.
func (idx *Index) Count() int {
	total, _ := idx.Stats()
	return total
}

// TotalSize возвращает суммарный размер живых записей в байтах.
func (idx *Index) TotalSize() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	now := time.Now()
	var total int64
	for _, e := range idx.entries {
		if e.expired(now) {
			continue
		}
		total += e.Size
	}
	return total
}

// PruneExpired удаляет истёкшие элементы. Возвращает количество удалённых.
// Квоту не трогает: учёт после пассивного истечения выправляет сверка.
func (idx *Index) PruneExpired(now time.Time) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	pruned := 0
	for key, e := range idx.entries {
		if e.expired(now) {
			delete(idx.entries, key)
			pruned++
		}
	}
	return pruned
}
