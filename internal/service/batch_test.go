package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/hookstore/internal/events"
	"github.com/bigkaa/hookstore/internal/quota"
	"github.com/bigkaa/hookstore/internal/storage/index"
	"github.com/bigkaa/hookstore/internal/storage/kv"
)

// countingStore оборачивает kv.Store и считает обращения к нему.
type countingStore struct {
	kv.Store
	calls atomic.Int64
}

func (s *countingStore) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.calls.Add(1)
	return s.Store.PutWithTTL(ctx, key, value, ttl)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.calls.Add(1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Delete(ctx context.Context, key string) (bool, error) {
	s.calls.Add(1)
	return s.Store.Delete(ctx, key)
}

func setupBatchEnv(t *testing.T) (*BatchService, *testEnv, *countingStore) {
	t.Helper()

	cfg := testConfig()
	logger := testLogger()
	store := &countingStore{Store: kv.NewMemory()}
	qa := quota.New(store, cfg.CounterKey(), cfg.MaxBodySize, cfg.TotalPayloadLimit, logger)
	idx := index.New(logger)
	idx.Rebuild(nil)
	emitter := events.New(store, logger)
	cache := NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	records := NewRecordService(cfg, store, qa, idx, emitter, cache, logger)
	batch := NewBatchService(records, logger)

	return batch, &testEnv{cfg: cfg, store: store, qa: qa, idx: idx, records: records}, store
}

func rawItems(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func TestBatchService_CreateAllValid(t *testing.T) {
	batch, env, _ := setupBatchEnv(t)
	ctx := context.Background()

	result := batch.CreateBatch(ctx, "orders", rawItems(`{"a":1}`, `{"b":2}`, `{"c":3}`))

	if len(result.Created) != 3 {
		t.Fatalf("Created: хотели 3, получили %d", len(result.Created))
	}
	if len(result.Failed) != 0 {
		t.Fatalf("Failed: хотели 0, получили %d", len(result.Failed))
	}

	// Каждый ключ независимо читается
	for _, c := range result.Created {
		if _, err := env.records.Get(ctx, c.Key); err != nil {
			t.Errorf("Get(%s): %v", c.Key, err)
		}
	}
}

func TestBatchService_CreateIsolation(t *testing.T) {
	batch, env, _ := setupBatchEnv(t)
	ctx := context.Background()

	// Второй элемент некорректен: остальные должны сохраниться
	result := batch.CreateBatch(ctx, "orders", rawItems(`{"a":1}`, `{broken`, `{"c":3}`))

	if len(result.Created) != 2 {
		t.Fatalf("Created: хотели 2, получили %d", len(result.Created))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("Failed: хотели 1, получили %d", len(result.Failed))
	}
	if result.Failed[0].Index != 1 {
		t.Errorf("Индекс отказа: хотели 1, получили %d", result.Failed[0].Index)
	}

	for _, c := range result.Created {
		if _, err := env.records.Get(ctx, c.Key); err != nil {
			t.Errorf("Get(%s): %v", c.Key, err)
		}
	}
}

func TestBatchService_DeleteToleratesMissing(t *testing.T) {
	batch, env, _ := setupBatchEnv(t)
	ctx := context.Background()

	created := batch.CreateBatch(ctx, "orders", rawItems(`{"a":1}`, `{"b":2}`))
	if len(created.Created) != 2 {
		t.Fatalf("Created: хотели 2, получили %d", len(created.Created))
	}

	keys := []string{created.Created[0].Key, "orders:missing", created.Created[1].Key}
	result, err := batch.DeleteBatch(ctx, keys)
	if err != nil {
		t.Fatalf("Ошибка DeleteBatch: %v", err)
	}

	if result.Deleted != 2 {
		t.Errorf("Deleted: хотели 2, получили %d", result.Deleted)
	}
	if result.Missed != 1 {
		t.Errorf("Missed: хотели 1, получили %d", result.Missed)
	}

	total, _ := env.qa.Total(ctx)
	if total != 0 {
		t.Errorf("Счётчик после удаления всех записей: хотели 0, получили %d", total)
	}
}

func TestBatchService_DeleteEmptyListNoStoreCalls(t *testing.T) {
	batch, _, store := setupBatchEnv(t)
	ctx := context.Background()

	before := store.calls.Load()
	result, err := batch.DeleteBatch(ctx, []string{})
	if err != nil {
		t.Fatalf("Ошибка DeleteBatch: %v", err)
	}

	if result.Deleted != 0 || result.Missed != 0 {
		t.Errorf("Пустой пакет: хотели нулевой итог, получили %+v", result)
	}
	if got := store.calls.Load(); got != before {
		t.Errorf("Обращения к хранилищу: хотели 0, получили %d", got-before)
	}
}

func TestBatchService_CreateEmpty(t *testing.T) {
	batch, _, _ := setupBatchEnv(t)

	result := batch.CreateBatch(context.Background(), "orders", rawItems())
	if len(result.Created) != 0 || len(result.Failed) != 0 {
		t.Errorf("Пустой пакет: хотели нулевой итог, получили %+v", result)
	}
}
