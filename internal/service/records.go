// Пакет service — бизнес-логика hookstore.
// records.go — жизненный цикл одиночных записей: create, get, patch,
// delete, list, search.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/hookstore/internal/api/middleware"
	"github.com/bigkaa/hookstore/internal/config"
	"github.com/bigkaa/hookstore/internal/domain/model"
	"github.com/bigkaa/hookstore/internal/events"
	"github.com/bigkaa/hookstore/internal/quota"
	"github.com/bigkaa/hookstore/internal/storage/index"
	"github.com/bigkaa/hookstore/internal/storage/kv"
)

// RecordService — сервис жизненного цикла записей.
// Состояния ключа: absent → live → {deleted | expired}, переходы
// односторонние. Expired наступает пассивно, силами хранилища.
type RecordService struct {
	cfg     *config.Config
	store   kv.Store
	qa      *quota.Accountant
	idx     *index.Index
	emitter *events.Emitter
	cache   *CacheService
	logger  *slog.Logger
}

// NewRecordService создаёт сервис записей.
func NewRecordService(
	cfg *config.Config,
	store kv.Store,
	qa *quota.Accountant,
	idx *index.Index,
	emitter *events.Emitter,
	cache *CacheService,
	logger *slog.Logger,
) *RecordService {
	return &RecordService{
		cfg:     cfg,
		store:   store,
		qa:      qa,
		idx:     idx,
		emitter: emitter,
		cache:   cache,
		logger:  logger.With(slog.String("component", "record_service")),
	}
}

// CreateParams — параметры создания записи.
type CreateParams struct {
	// Category — категория; пустая строка → категория по умолчанию
	Category string
	// Body — сырое тело записи (JSON)
	Body []byte
	// TTLSeconds — срок хранения; 0 → TTL по умолчанию
	TTLSeconds int64
	// CallbackURL — URL уведомлений (опционально)
	CallbackURL string
}

// Create создаёт запись.
//
// Поток:
//  1. Валидация тела (непустое, корректный JSON)
//  2. Подстановка значений по умолчанию (category, ttl)
//  3. Quota.Reserve — атомарная проверка обоих лимитов; при отказе
//     побочных эффектов нет
//  4. Генерация ключа "{category}:{uuid}", персистенция с TTL;
//     при ошибке персистенции — компенсирующий Release (квота не течёт)
//  5. Индексация, кэш, событие webhook.created, метрики
func (s *RecordService) Create(ctx context.Context, params CreateParams) (*model.Record, error) {
	// 1. Валидация тела
	body := bytes.TrimSpace(params.Body)
	if len(body) == 0 {
		return nil, ErrNoBody
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}

	// 2. Значения по умолчанию
	category := params.Category
	if category == "" {
		category = s.cfg.DefaultCategory
	}
	ttl := params.TTLSeconds
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl < 0 {
		return nil, ErrInvalidTTL
	}

	// 3. Резервирование квоты
	size := int64(len(body))
	if err := s.qa.Reserve(ctx, category, size); err != nil {
		return nil, err
	}

	// 4. Формирование и персистенция записи
	now := time.Now().UTC()
	rec := &model.Record{
		Key:        category + ":" + uuid.New().String(),
		Category:   category,
		Value:      json.RawMessage(body),
		TTLSeconds: ttl,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttl) * time.Second),
		SizeBytes:  size,
	}
	if params.CallbackURL != "" {
		cb := params.CallbackURL
		rec.CallbackURL = &cb
	}

	if err := s.persist(ctx, rec); err != nil {
		// Резервирование и персистенция — одна логическая единица:
		// при ошибке записи резерв возвращается компенсирующим декрементом.
		s.qa.Release(ctx, category, size)
		return nil, err
	}

	// 5. Индекс, кэш, событие, метрики
	s.idx.Add(index.NewEntry(rec))
	s.cache.Set(rec.Key, rec)
	s.emitter.EmitCreated(ctx, rec.Category, rec.Key, rec.SizeBytes)

	middleware.CreatedTotal.Inc()
	middleware.WebhookCount.Inc()
	middleware.StorageBytes.Add(float64(size))

	s.logger.Info("Запись создана",
		slog.String("key", rec.Key),
		slog.String("category", rec.Category),
		slog.Int64("size", size),
		slog.Int64("ttl", ttl),
	)

	return rec, nil
}

// Get возвращает живую запись по ключу или ErrKeyNotFound.
// Сначала проверяется LRU-кэш, при промахе — чтение из хранилища.
func (s *RecordService) Get(ctx context.Context, key string) (*model.Record, error) {
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}

	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, rec)
	return rec, nil
}

// PatchParams — параметры частичного обновления записи.
// Мутируются только ttl и callback_url; value неизменяемо.
type PatchParams struct {
	// TTLSeconds — новый TTL (nil = не менять)
	TTLSeconds *int64
	// CallbackURL — новый callback URL (nil = не менять)
	CallbackURL *string
	// ClearCallback — сбросить callback URL (callback_url: null)
	ClearCallback bool
}

// Patch выполняет частичное обновление записи.
// Квоту не трогает. TTL в хранилище обновляется: при заданном ttl —
// полным новым сроком от текущего момента, иначе — остатком прежнего.
// Возвращает обновлённую запись и набор изменённых полей.
// Конкурентные Patch одного ключа разрешаются last-write-wins.
func (s *RecordService) Patch(ctx context.Context, key string, params PatchParams) (*model.Record, map[string]any, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	changes := make(map[string]any)

	if params.TTLSeconds != nil {
		ttl := *params.TTLSeconds
		if ttl <= 0 {
			return nil, nil, ErrInvalidTTL
		}
		rec.TTLSeconds = ttl
		rec.ExpiresAt = time.Now().UTC().Add(time.Duration(ttl) * time.Second)
		changes["ttl"] = ttl
	}

	switch {
	case params.ClearCallback:
		rec.CallbackURL = nil
		changes["callback_url"] = nil
	case params.CallbackURL != nil:
		cb := *params.CallbackURL
		rec.CallbackURL = &cb
		changes["callback_url"] = cb
	}

	if err := s.persist(ctx, rec); err != nil {
		return nil, nil, err
	}

	s.idx.Add(index.NewEntry(rec))
	s.cache.Delete(key)

	s.logger.Info("Запись обновлена",
		slog.String("key", key),
		slog.Int("changes", len(changes)),
	)

	return rec, changes, nil
}

// Delete явно удаляет запись.
// Удаление из хранилища, деиндексация, синхронный Quota.Release и
// ровно одно событие webhook.deleted. Отсутствующий или истёкший
// ключ — ErrKeyNotFound без побочных эффектов.
func (s *RecordService) Delete(ctx context.Context, key string) (*model.Record, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	existed, err := s.store.Delete(ctx, s.cfg.DataKey(key))
	if err != nil {
		return nil, fmt.Errorf("удаление записи %s: %w", key, err)
	}

	s.idx.Remove(key)
	s.cache.Delete(key)

	if !existed {
		// Запись истекла между load и Delete — квоту выправит сверка.
		return nil, ErrKeyNotFound
	}

	s.qa.Release(ctx, rec.Category, rec.SizeBytes)
	s.emitter.EmitDeleted(ctx, rec.Category, rec.Key)

	middleware.DeletedTotal.Inc()
	middleware.WebhookCount.Dec()
	middleware.StorageBytes.Sub(float64(rec.SizeBytes))

	s.logger.Info("Запись удалена",
		slog.String("key", key),
		slog.String("category", rec.Category),
		slog.Int64("size", rec.SizeBytes),
	)

	return rec, nil
}

// List возвращает ключи живых записей категории (все при category == "")
// с фильтром since по времени создания. Обслуживается индексом,
// без обращений к хранилищу.
func (s *RecordService) List(category string, since time.Time) []string {
	return s.idx.List(category, since)
}

// Search возвращает живые записи, значение которых содержит q как
// подстроку без учёта регистра. Кандидаты берутся из индекса,
// содержимое — из хранилища; записи, истёкшие между этими шагами,
// молча пропускаются.
func (s *RecordService) Search(ctx context.Context, q string) ([]*model.Record, error) {
	keys := s.idx.Search(q)

	results := make([]*model.Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, rec)
	}
	return results, nil
}

// persist сериализует запись и сохраняет её с остаточным TTL.
func (s *RecordService) persist(ctx context.Context, rec *model.Record) error {
	envelope, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("сериализация записи %s: %w", rec.Key, err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return ErrKeyNotFound
	}

	if err := s.store.PutWithTTL(ctx, s.cfg.DataKey(rec.Key), envelope, ttl); err != nil {
		return fmt.Errorf("сохранение записи %s: %w", rec.Key, err)
	}
	return nil
}

// load читает запись из хранилища, минуя кэш.
func (s *RecordService) load(ctx context.Context, key string) (*model.Record, error) {
	raw, err := s.store.Get(ctx, s.cfg.DataKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("чтение записи %s: %w", key, err)
	}

	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("десериализация записи %s: %w", key, err)
	}

	// Хранилище могло ещё не удалить истёкший ключ.
	if rec.IsExpired(time.Now()) {
		return nil, ErrKeyNotFound
	}

	return &rec, nil
}
