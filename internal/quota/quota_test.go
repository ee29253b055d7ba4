package quota

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/bigkaa/hookstore/internal/storage/kv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAccountant_ReserveOversized(t *testing.T) {
	store := kv.NewMemory()
	qa := New(store, "total_size", 256, 100000, testLogger())
	ctx := context.Background()

	// Тело в 306 байт при лимите 256 отклоняется независимо от счётчика
	err := qa.Reserve(ctx, "default", 306)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Хотели ErrPayloadTooLarge, получили %v", err)
	}

	// Отказ не трогает счётчик
	total, _ := qa.Total(ctx)
	if total != 0 {
		t.Errorf("Счётчик после отказа: хотели 0, получили %d", total)
	}
}

func TestAccountant_ReserveStorageLimit(t *testing.T) {
	store := kv.NewMemory()
	qa := New(store, "total_size", 300, 360, testLogger())
	ctx := context.Background()

	// Первое резервирование проходит
	if err := qa.Reserve(ctx, "default", 200); err != nil {
		t.Fatalf("Первый Reserve: %v", err)
	}

	// Второе пробивает бюджет: отказ, счётчик без изменений
	err := qa.Reserve(ctx, "default", 200)
	if !errors.Is(err, ErrStorageLimit) {
		t.Fatalf("Хотели ErrStorageLimit, получили %v", err)
	}

	total, _ := qa.Total(ctx)
	if total != 200 {
		t.Errorf("Счётчик после отказа: хотели 200, получили %d", total)
	}
}

func TestAccountant_ReleaseRestoresBudget(t *testing.T) {
	store := kv.NewMemory()
	qa := New(store, "total_size", 300, 360, testLogger())
	ctx := context.Background()

	if err := qa.Reserve(ctx, "default", 200); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	qa.Release(ctx, "default", 200)

	total, _ := qa.Total(ctx)
	if total != 0 {
		t.Errorf("Счётчик после Release: хотели 0, получили %d", total)
	}

	// После освобождения бюджет снова доступен
	if err := qa.Reserve(ctx, "default", 300); err != nil {
		t.Errorf("Reserve после Release: %v", err)
	}
}

func TestAccountant_Accessors(t *testing.T) {
	store := kv.NewMemory()
	qa := New(store, "total_size", 256, 360, testLogger())

	if qa.Limit() != 360 {
		t.Errorf("Limit: хотели 360, получили %d", qa.Limit())
	}
	if qa.MaxBodySize() != 256 {
		t.Errorf("MaxBodySize: хотели 256, получили %d", qa.MaxBodySize())
	}
}
