// batch.go — пакетные операции над записями.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// BatchFailure — отказ по одному элементу пакета.
type BatchFailure struct {
	// Index — позиция элемента во входном массиве
	Index int
	// Err — причина отказа
	Err error
}

// BatchCreateResult — итог пакетного создания.
type BatchCreateResult struct {
	// Created — успешно созданные записи, в порядке входного массива
	Created []BatchCreated
	// Failed — отказы по элементам
	Failed []BatchFailure
}

// BatchCreated — успешно созданный элемент пакета.
type BatchCreated struct {
	Key      string
	Category string
	TTL      int64
}

// BatchDeleteResult — итог пакетного удаления.
type BatchDeleteResult struct {
	// Deleted — количество фактически удалённых записей
	Deleted int
	// Missed — количество отсутствовавших ключей
	Missed int
}

// BatchService — пакетные создание и удаление.
// Пакет — не транзакция: элементы обрабатываются последовательно и
// независимо, отказ одного не откатывает остальные.
type BatchService struct {
	records *RecordService
	logger  *slog.Logger
}

// NewBatchService создаёт сервис пакетных операций.
func NewBatchService(records *RecordService, logger *slog.Logger) *BatchService {
	return &BatchService{
		records: records,
		logger:  logger.With(slog.String("component", "batch_service")),
	}
}

// CreateBatch создаёт записи из items последовательно, с полной
// изоляцией элементов. Каждый элемент проходит обычный путь Create,
// включая резервирование квоты: пакет, пробивающий лимит на середине,
// частично успешен. Пустой items — валидный пакет с нулевым итогом.
func (s *BatchService) CreateBatch(ctx context.Context, category string, items []json.RawMessage) *BatchCreateResult {
	result := &BatchCreateResult{
		Created: make([]BatchCreated, 0, len(items)),
		Failed:  make([]BatchFailure, 0),
	}

	for i, item := range items {
		rec, err := s.records.Create(ctx, CreateParams{
			Category: category,
			Body:     item,
		})
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Index: i, Err: err})
			continue
		}
		result.Created = append(result.Created, BatchCreated{
			Key:      rec.Key,
			Category: rec.Category,
			TTL:      rec.TTLSeconds,
		})
	}

	s.logger.Info("Пакетное создание завершено",
		slog.Int("created", len(result.Created)),
		slog.Int("failed", len(result.Failed)),
	)

	return result
}

// DeleteBatch удаляет записи по списку ключей. Отсутствующие ключи
// не считаются ошибкой и учитываются в Missed. Пустой список не
// порождает ни одного обращения к хранилищу.
func (s *BatchService) DeleteBatch(ctx context.Context, keys []string) (*BatchDeleteResult, error) {
	result := &BatchDeleteResult{}

	for _, key := range keys {
		if _, err := s.records.Delete(ctx, key); err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				result.Missed++
				continue
			}
			return nil, err
		}
		result.Deleted++
	}

	if len(keys) > 0 {
		s.logger.Info("Пакетное удаление завершено",
			slog.Int("deleted", result.Deleted),
			slog.Int("missed", result.Missed),
		)
	}

	return result, nil
}
