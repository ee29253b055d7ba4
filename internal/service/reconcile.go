// reconcile.go — сервис фоновой сверки (индекс и счётчик квоты).
//
// Сверка выполняет три задачи:
//  1. Перестраивает in-memory индекс из содержимого хранилища
//  2. Списывает с глобального счётчика квоты байты пассивно истёкших
//     записей (истечение не проходит через Delete и счётчик не трогает)
//  3. Актуализирует gauge-метрики хранилища
//
// Запускается как горутина с периодическим тикером (WH_RECONCILE_INTERVAL).
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/hookstore/internal/api/middleware"
	"github.com/bigkaa/hookstore/internal/config"
	"github.com/bigkaa/hookstore/internal/domain/model"
	"github.com/bigkaa/hookstore/internal/storage/index"
	"github.com/bigkaa/hookstore/internal/storage/kv"
)

// Prometheus метрики сверки
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	// reconcileReclaimedBytesTotal — байты, списанные со счётчика квоты.
	reconcileReclaimedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_reconcile_reclaimed_bytes_total",
		Help: "Общее количество байт, списанных со счётчика квоты сверкой",
	})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	// Records — количество живых записей в хранилище
	Records int
	// LiveBytes — суммарный размер живых записей
	LiveBytes int64
	// Reclaimed — байты, списанные со счётчика квоты
	Reclaimed int64
	// Errors — количество ошибок при обработке ключей
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReconcileService — сервис фоновой сверки.
type ReconcileService struct {
	cfg      *config.Config
	store    kv.Store
	idx      *index.Index
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex // защита от параллельного запуска RunOnce
	running bool       // флаг работы фонового процесса
	cancel  context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	cfg *config.Config,
	store kv.Store,
	idx *index.Index,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		cfg:      cfg,
		store:    store,
		idx:      idx,
		interval: cfg.ReconcileInterval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rc *ReconcileService) Start(ctx context.Context) {
	rcCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel
	rc.running = true

	go rc.run(rcCtx)

	rc.logger.Info("Сверка запущена",
		slog.String("interval", rc.interval.String()),
	)
}

// Stop останавливает фоновый процесс сверки.
func (rc *ReconcileService) Stop() {
	if rc.cancel != nil {
		rc.cancel()
	}
	rc.running = false
	rc.logger.Info("Сверка остановлена")
}

// run — основной цикл фоновой горутины.
func (rc *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rc.RunOnce(ctx); err != nil {
				rc.logger.Error("Сверка завершилась с ошибкой",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Порядок обработки:
//  1. Снимок счётчика квоты до сканирования
//  2. Scan хранилища по префиксу данных → живые записи и их суммарный размер
//  3. Слияние собранных записей в индекс; записи, добавленные во время
//     сканирования, сохраняются
//  4. Дрейф считается от меньшего из снимков счётчика до и после Scan.
//     Конкурентная дельта видна только в post-снимке: резервирование его
//     поднимает, возврат байт удаления — опускает. Меньший из снимков
//     в обоих случаях не завышает дрейф, поэтому списание не опускает
//     счётчик ниже суммы живых байт. Счётчик никогда не перезаписывается
//     целиком.
func (rc *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{}

	rc.logger.Debug("Сверка начата")

	preCounter, err := rc.store.GetCounter(ctx, rc.cfg.CounterKey())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]index.Entry, 0)
	var liveBytes int64

	// Фаза сканирования
	err = rc.store.Scan(ctx, rc.cfg.DataKeyPrefix()+"*", func(storeKey string, value []byte) error {
		var rec model.Record
		if err := json.Unmarshal(value, &rec); err != nil {
			rc.logger.Warn("Нечитаемая запись при сверке",
				slog.String("store_key", storeKey),
			)
			result.Errors++
			return nil
		}
		if rec.IsExpired(now) {
			return nil
		}
		entries = append(entries, index.NewEntry(&rec))
		liveBytes += rec.SizeBytes
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Records = len(entries)
	result.LiveBytes = liveBytes

	// Фаза слияния индекса
	rc.idx.Reconcile(entries, now)

	// Фаза коррекции счётчика квоты
	postCounter, err := rc.store.GetCounter(ctx, rc.cfg.CounterKey())
	if err != nil {
		return nil, err
	}
	if drift := min(preCounter, postCounter) - liveBytes; drift > 0 {
		if _, err := rc.store.DecrBy(ctx, rc.cfg.CounterKey(), drift); err != nil {
			return nil, err
		}
		result.Reclaimed = drift
	}

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	reconcileRunsTotal.Inc()
	reconcileReclaimedBytesTotal.Add(float64(result.Reclaimed))
	reconcileDurationSeconds.Observe(result.Duration.Seconds())
	middleware.WebhookCount.Set(float64(result.Records))
	middleware.StorageBytes.Set(float64(result.LiveBytes))

	rc.logger.Info("Сверка завершена",
		slog.Int("records", result.Records),
		slog.Int64("live_bytes", result.LiveBytes),
		slog.Int64("reclaimed", result.Reclaimed),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}
