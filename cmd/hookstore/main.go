// Точка входа hookstore — сервиса приёма и хранения webhook.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/hookstore/internal/api/handlers"
	"github.com/bigkaa/hookstore/internal/api/middleware"
	"github.com/bigkaa/hookstore/internal/config"
	"github.com/bigkaa/hookstore/internal/events"
	"github.com/bigkaa/hookstore/internal/quota"
	"github.com/bigkaa/hookstore/internal/server"
	"github.com/bigkaa/hookstore/internal/service"
	"github.com/bigkaa/hookstore/internal/storage/index"
	"github.com/bigkaa/hookstore/internal/storage/kv"
	"github.com/bigkaa/hookstore/internal/ws"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("hookstore запускается",
		slog.String("version", config.Version),
		slog.String("store", cfg.Store),
		slog.Int("port", cfg.Port),
		slog.String("base_path", cfg.BasePath),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Хранилище
	var store kv.Store
	switch cfg.Store {
	case "valkey":
		valkey, err := kv.NewValkey(ctx, cfg.ValkeyAddr, cfg.ValkeyDB, logger)
		if err != nil {
			logger.Error("Ошибка подключения к Valkey", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = valkey
	case "memory":
		store = kv.NewMemory()
	default:
		logger.Error("Неизвестный бэкенд хранилища", slog.String("store", cfg.Store))
		os.Exit(1)
	}
	defer store.Close()

	// 2. Квота и in-memory индекс
	qa := quota.New(store, cfg.CounterKey(), cfg.MaxBodySize, cfg.TotalPayloadLimit, logger)
	idx := index.New(logger)

	// 3. Сервисы
	emitter := events.New(store, logger)
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	records := service.NewRecordService(cfg, store, qa, idx, emitter, cache, logger)
	batch := service.NewBatchService(records, logger)
	replay := service.NewReplayService(cfg, store, records, logger)

	// 4. Сверка: первый запуск строит индекс до приёма трафика
	reconcile := service.NewReconcileService(cfg, store, idx, logger)
	if _, err := reconcile.RunOnce(ctx); err != nil {
		logger.Error("Ошибка начальной сверки", slog.String("error", err.Error()))
		os.Exit(1)
	}
	reconcile.Start(ctx)
	defer reconcile.Stop()

	// 5. WS-мост событий
	bridge := ws.New(store, cfg.WSSendBuffer, logger)
	if err := bridge.Start(ctx); err != nil {
		logger.Error("Ошибка запуска WS-моста", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer bridge.Stop()

	// 6. Handlers
	h := handlers.NewHandler(
		handlers.NewWebhooksHandler(records, cfg),
		handlers.NewBatchHandler(batch),
		handlers.NewSearchHandler(records),
		handlers.NewStatsHandler(records),
		handlers.NewExportHandler(replay),
		handlers.NewReplayHandler(replay),
		handlers.NewHealthHandler(store, idx),
		bridge,
	)

	// 7. Аутентификация
	auth := middleware.NewAPIKeyAuth(cfg.APIKeys, cfg.AuthExempt, logger)
	if auth.Enabled() {
		logger.Info("Аутентификация по API-ключу включена",
			slog.Int("keys", len(cfg.APIKeys)),
		)
	} else {
		logger.Warn("Аутентификация отключена: API-ключи не заданы")
	}

	// 8. HTTP-сервер
	srv := server.New(cfg, logger, h, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
