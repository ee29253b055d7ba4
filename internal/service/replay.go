// replay.go — повторная доставка, экспорт и импорт записей.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/hookstore/internal/config"
	"github.com/bigkaa/hookstore/internal/domain/model"
	"github.com/bigkaa/hookstore/internal/storage/kv"
)

// ReplayService — replay, export и import записей.
// Все три операции порождают записи через обычный путь Create,
// поэтому квота, события и метрики учитываются единообразно.
type ReplayService struct {
	cfg     *config.Config
	store   kv.Store
	records *RecordService
	logger  *slog.Logger
}

// NewReplayService создаёт сервис replay/export/import.
func NewReplayService(cfg *config.Config, store kv.Store, records *RecordService, logger *slog.Logger) *ReplayService {
	return &ReplayService{
		cfg:     cfg,
		store:   store,
		records: records,
		logger:  logger.With(slog.String("component", "replay_service")),
	}
}

// ReplayParams — переопределения для replay.
type ReplayParams struct {
	// Category — категория новой записи; пустая → категория исходной
	Category string
	// TTLSeconds — TTL новой записи; 0 → TTL по умолчанию
	TTLSeconds int64
}

// Replay создаёт независимую копию значения существующей записи под
// новым ключом. Исходная запись не мутируется; дальнейшие судьбы
// копий не связаны. Генерируется событие webhook.created.
func (s *ReplayService) Replay(ctx context.Context, sourceKey string, params ReplayParams) (*model.Record, error) {
	src, err := s.records.Get(ctx, sourceKey)
	if err != nil {
		return nil, err
	}

	category := params.Category
	if category == "" {
		category = src.Category
	}

	rec, err := s.records.Create(ctx, CreateParams{
		Category:   category,
		Body:       src.Value,
		TTLSeconds: params.TTLSeconds,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Запись воспроизведена",
		slog.String("original_key", sourceKey),
		slog.String("new_key", rec.Key),
		slog.String("category", rec.Category),
	)

	return rec, nil
}

// Export собирает снапшот живых записей. При непустой category
// экспортируется только она. Снапшот читается напрямую из хранилища
// (Scan по префиксу данных), истёкшие записи отбрасываются.
func (s *ReplayService) Export(ctx context.Context, category string) (*model.ExportSnapshot, error) {
	now := time.Now()
	webhooks := make([]model.Record, 0)

	err := s.store.Scan(ctx, s.cfg.DataKeyPrefix()+"*", func(storeKey string, value []byte) error {
		var rec model.Record
		if err := json.Unmarshal(value, &rec); err != nil {
			// Чужой ключ под префиксом данных, пропускаем.
			s.logger.Warn("Нечитаемая запись при экспорте", slog.String("store_key", storeKey))
			return nil
		}
		if rec.IsExpired(now) {
			return nil
		}
		if category != "" && rec.Category != category {
			return nil
		}
		webhooks = append(webhooks, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("сканирование хранилища при экспорте: %w", err)
	}

	// Детерминированный порядок снапшота: новые первыми.
	sort.Slice(webhooks, func(i, j int) bool {
		if !webhooks[i].CreatedAt.Equal(webhooks[j].CreatedAt) {
			return webhooks[i].CreatedAt.After(webhooks[j].CreatedAt)
		}
		return webhooks[i].Key < webhooks[j].Key
	})

	snap := &model.ExportSnapshot{
		Version:       model.ExportVersion,
		ExportedAt:    now.Unix(),
		Category:      category,
		Webhooks:      webhooks,
		TotalExported: len(webhooks),
	}

	s.logger.Info("Экспорт завершён",
		slog.String("category", category),
		slog.Int("records", len(webhooks)),
	)

	return snap, nil
}

// ImportResult — итог импорта снапшота.
type ImportResult struct {
	// Imported — количество созданных записей
	Imported int
	// Failed — отказы по элементам снапшота
	Failed []BatchFailure
}

// Import создаёт записи из снапшота. Каждая запись получает новый ключ
// и проходит обычный путь Create: квота соблюдается, события
// генерируются. Элементы импортируются независимо, как в пакете.
func (s *ReplayService) Import(ctx context.Context, snap *model.ExportSnapshot) (*ImportResult, error) {
	if snap == nil || snap.Webhooks == nil {
		return nil, ErrInvalidSnapshot
	}
	if snap.Version != "" && !strings.HasPrefix(snap.Version, "1.") {
		return nil, ErrInvalidSnapshot
	}

	result := &ImportResult{Failed: make([]BatchFailure, 0)}

	for i, rec := range snap.Webhooks {
		_, err := s.records.Create(ctx, CreateParams{
			Category:    rec.Category,
			Body:        rec.Value,
			TTLSeconds:  rec.TTLSeconds,
			CallbackURL: derefString(rec.CallbackURL),
		})
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Index: i, Err: err})
			continue
		}
		result.Imported++
	}

	s.logger.Info("Импорт завершён",
		slog.Int("imported", result.Imported),
		slog.Int("failed", len(result.Failed)),
	)

	return result, nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
