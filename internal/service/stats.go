// stats.go — агрегированная статистика хранилища.
package service

import (
	"context"

	"github.com/bigkaa/hookstore/internal/domain/model"
)

// Stats — срез состояния хранилища.
// total_size_bytes берётся из счётчика квоты (авторитетный источник
// для лимита), разбивка по категориям — из индекса. Из-за пассивного
// истечения значения могут расходиться до очередной сверки.
type Stats struct {
	TotalWebhooks     int                            `json:"total_webhooks"`
	TotalSizeBytes    int64                          `json:"total_size_bytes"`
	StorageLimitBytes int64                          `json:"storage_limit_bytes"`
	Categories        map[string]model.CategoryStats `json:"categories"`
}

// Stats возвращает текущую статистику хранилища.
func (s *RecordService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.qa.Total(ctx)
	if err != nil {
		return nil, err
	}

	count, categories := s.idx.Stats()

	return &Stats{
		TotalWebhooks:     count,
		TotalSizeBytes:    total,
		StorageLimitBytes: s.qa.Limit(),
		Categories:        categories,
	}, nil
}
