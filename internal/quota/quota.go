// Пакет quota — учёт и контроль объёма хранилища.
//
// Два лимита: per-item (MaxBodySize) и агрегатный (TotalPayloadLimit).
// Агрегатный лимит держится на одном счётчике во внешнем хранилище
// и проверяется исключительно атомарным BoundedIncrBy: никакой
// read-then-write последовательности в прикладной логике, иначе
// конкурентные создания могут совместно превысить бюджет.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Ошибки резервирования квоты.
var (
	// ErrPayloadTooLarge — тело превышает per-item лимит.
	ErrPayloadTooLarge = errors.New("тело превышает максимальный размер")
	// ErrStorageLimit — агрегатный бюджет хранилища исчерпан.
	ErrStorageLimit = errors.New("превышен общий лимит хранилища")
)

// BoundedCounter — подмножество kv.Store, нужное учёту квоты.
type BoundedCounter interface {
	BoundedIncrBy(ctx context.Context, counter string, delta, limit int64) (bool, int64, error)
	DecrBy(ctx context.Context, counter string, delta int64) (int64, error)
	GetCounter(ctx context.Context, counter string) (int64, error)
}

// Accountant — учёт квоты хранилища.
type Accountant struct {
	store      BoundedCounter
	counter    string
	maxBody    int64
	totalLimit int64
	logger     *slog.Logger
}

// New создаёт Accountant.
// counter — имя глобального счётчика занятых байт в хранилище.
func New(store BoundedCounter, counter string, maxBodySize, totalPayloadLimit int64, logger *slog.Logger) *Accountant {
	return &Accountant{
		store:      store,
		counter:    counter,
		maxBody:    maxBodySize,
		totalLimit: totalPayloadLimit,
		logger:     logger.With(slog.String("component", "quota")),
	}
}

// Reserve резервирует size байт под новую запись.
//
// Порядок проверок:
//  1. size > MaxBodySize — отказ без обращения к хранилищу, счётчик не меняется.
//  2. BoundedIncrBy(counter, size, TotalPayloadLimit) — атомарная проверка
//     и резервирование; при отказе примитив гарантирует отсутствие
//     частичного применения.
func (a *Accountant) Reserve(ctx context.Context, category string, size int64) error {
	if size > a.maxBody {
		return ErrPayloadTooLarge
	}

	accepted, total, err := a.store.BoundedIncrBy(ctx, a.counter, size, a.totalLimit)
	if err != nil {
		return fmt.Errorf("резервирование квоты: %w", err)
	}
	if !accepted {
		a.logger.Warn("Бюджет хранилища исчерпан",
			slog.String("category", category),
			slog.Int64("size", size),
			slog.Int64("total", total),
			slog.Int64("limit", a.totalLimit),
		)
		return ErrStorageLimit
	}

	return nil
}

// Release освобождает size байт после явного удаления записи
// или как компенсация неудавшейся персистенции после Reserve.
func (a *Accountant) Release(ctx context.Context, category string, size int64) {
	if _, err := a.store.DecrBy(ctx, a.counter, size); err != nil {
		// Недоступность хранилища здесь означает, что и сами данные
		// недоступны; счётчик выправит фоновая сверка.
		a.logger.Error("Ошибка освобождения квоты",
			slog.String("category", category),
			slog.Int64("size", size),
			slog.String("error", err.Error()),
		)
	}
}

// Total возвращает текущее значение счётчика занятых байт.
func (a *Accountant) Total(ctx context.Context) (int64, error) {
	total, err := a.store.GetCounter(ctx, a.counter)
	if err != nil {
		return 0, fmt.Errorf("чтение счётчика квоты: %w", err)
	}
	return total, nil
}

// Limit возвращает настроенный агрегатный лимит.
func (a *Accountant) Limit() int64 {
	return a.totalLimit
}

// MaxBodySize возвращает настроенный per-item лимит.
func (a *Accountant) MaxBodySize() int64 {
	return a.maxBody
}
