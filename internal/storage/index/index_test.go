package index

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/hookstore/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEntry(key, category, value string, createdAt time.Time) Entry {
	return NewEntry(&model.Record{
		Key:       key,
		Category:  category,
		Value:     json.RawMessage(value),
		SizeBytes: int64(len(value)),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Hour),
	})
}

func TestIndex_AddRemoveGet(t *testing.T) {
	idx := New(testLogger())
	now := time.Now()

	idx.Add(testEntry("orders:1", "orders", `{"id":1}`, now))

	e := idx.Get("orders:1")
	if e == nil {
		t.Fatal("Get: элемент не найден")
	}
	if e.Category != "orders" {
		t.Errorf("Category: хотели orders, получили %s", e.Category)
	}

	if !idx.Remove("orders:1") {
		t.Error("Remove: хотели true, получили false")
	}
	if idx.Get("orders:1") != nil {
		t.Error("Get после Remove: хотели nil")
	}
	if idx.Remove("orders:1") {
		t.Error("Повторный Remove: хотели false, получили true")
	}
}

func TestIndex_ListFiltersAndOrder(t *testing.T) {
	idx := New(testLogger())
	base := time.Now().Add(-time.Minute)

	idx.Add(testEntry("orders:1", "orders", `{}`, base))
	idx.Add(testEntry("orders:2", "orders", `{}`, base.Add(10*time.Second)))
	idx.Add(testEntry("users:1", "users", `{}`, base.Add(20*time.Second)))

	t.Run("все категории, новые первыми", func(t *testing.T) {
		keys := idx.List("", time.Time{})
		want := []string{"users:1", "orders:2", "orders:1"}
		if len(keys) != len(want) {
			t.Fatalf("Количество ключей: хотели %d, получили %d", len(want), len(keys))
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("keys[%d]: хотели %s, получили %s", i, want[i], keys[i])
			}
		}
	})

	t.Run("фильтр по категории", func(t *testing.T) {
		keys := idx.List("orders", time.Time{})
		if len(keys) != 2 {
			t.Fatalf("Количество ключей: хотели 2, получили %d", len(keys))
		}
	})

	t.Run("фильтр since", func(t *testing.T) {
		keys := idx.List("", base.Add(5*time.Second))
		if len(keys) != 2 {
			t.Fatalf("Количество ключей: хотели 2, получили %d", len(keys))
		}
	})
}

func TestIndex_SearchCaseInsensitive(t *testing.T) {
	idx := New(testLogger())
	now := time.Now()

	idx.Add(testEntry("products:1", "products", `{"name":"Laptop Pro"}`, now))
	idx.Add(testEntry("products:2", "products", `{"name":"Mouse"}`, now))

	keys := idx.Search("laptop")
	if len(keys) != 1 || keys[0] != "products:1" {
		t.Fatalf("Search(laptop): хотели [products:1], получили %v", keys)
	}

	if keys := idx.Search("пусто"); len(keys) != 0 {
		t.Errorf("Search без совпадений: хотели пустой список, получили %v", keys)
	}
}

func TestIndex_StatsPerCategory(t *testing.T) {
	idx := New(testLogger())
	now := time.Now()

	idx.Add(testEntry("orders:1", "orders", `{"a":1}`, now))
	idx.Add(testEntry("orders:2", "orders", `{"b":22}`, now))
	idx.Add(testEntry("users:1", "users", `{"c":3}`, now))

	total, categories := idx.Stats()
	if total != 3 {
		t.Errorf("Общее количество: хотели 3, получили %d", total)
	}
	if categories["orders"].Count != 2 {
		t.Errorf("orders.count: хотели 2, получили %d", categories["orders"].Count)
	}
	wantSize := int64(len(`{"a":1}`) + len(`{"b":22}`))
	if categories["orders"].Size != wantSize {
		t.Errorf("orders.size: хотели %d, получили %d", wantSize, categories["orders"].Size)
	}
}

func TestIndex_ExpiredEntriesInvisible(t *testing.T) {
	idx := New(testLogger())

	// Истёкший элемент: expires_at в прошлом
	expired := testEntry("orders:old", "orders", `{"name":"laptop"}`, time.Now().Add(-2*time.Hour))
	idx.Add(expired)
	idx.Add(testEntry("orders:new", "orders", `{}`, time.Now()))

	if idx.Get("orders:old") != nil {
		t.Error("Get истёкшего: хотели nil")
	}
	if keys := idx.List("orders", time.Time{}); len(keys) != 1 {
		t.Errorf("List: хотели 1 ключ, получили %v", keys)
	}
	if keys := idx.Search("laptop"); len(keys) != 0 {
		t.Errorf("Search по истёкшему: хотели пустой список, получили %v", keys)
	}
	if total, _ := idx.Stats(); total != 1 {
		t.Errorf("Stats: хотели 1, получили %d", total)
	}

	pruned := idx.PruneExpired(time.Now())
	if pruned != 1 {
		t.Errorf("PruneExpired: хотели 1, получили %d", pruned)
	}
}

func TestIndex_ReconcileKeepsNewerEntries(t *testing.T) {
	idx := New(testLogger())
	scanStart := time.Now()

	idx.Rebuild([]Entry{
		testEntry("orders:stale", "orders", `{}`, scanStart.Add(-time.Minute)),
	})
	// Запись, добавленная после начала сканирования
	idx.Add(testEntry("orders:fresh", "orders", `{}`, scanStart.Add(time.Second)))

	scanned := []Entry{testEntry("orders:scanned", "orders", `{}`, scanStart.Add(-time.Minute))}
	idx.Reconcile(scanned, scanStart)

	if idx.Get("orders:scanned") == nil {
		t.Error("Результат сканирования должен попасть в индекс")
	}
	if idx.Get("orders:fresh") == nil {
		t.Error("Запись, добавленная после начала сканирования, должна сохраниться")
	}
	if idx.Get("orders:stale") != nil {
		t.Error("Запись, отсутствующая в сканировании и созданная до него, должна уйти")
	}
	if idx.Count() != 2 {
		t.Errorf("Count: хотели 2, получили %d", idx.Count())
	}
}

func TestIndex_RebuildSetsReady(t *testing.T) {
	idx := New(testLogger())

	if idx.IsReady() {
		t.Error("Новый индекс не должен быть ready")
	}

	idx.Rebuild([]Entry{testEntry("orders:1", "orders", `{}`, time.Now())})

	if !idx.IsReady() {
		t.Error("После Rebuild индекс должен быть ready")
	}
	if idx.Count() != 1 {
		t.Errorf("Count: хотели 1, получили %d", idx.Count())
	}
}
