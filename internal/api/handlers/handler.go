// handler.go — сборка HTTP handlers и маршрутизация.
// Служебные маршруты (_search, _stats, _export, _import, _metrics, _ws)
// регистрируются до wildcard-маршрутов категорий: chi предпочитает
// статические сегменты, поэтому категория не может затенить их.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/quota"
	"github.com/bigkaa/hookstore/internal/service"
	"github.com/bigkaa/hookstore/internal/ws"
)

// Handler — все HTTP handlers сервиса.
type Handler struct {
	webhooks *WebhooksHandler
	batch    *BatchHandler
	search   *SearchHandler
	stats    *StatsHandler
	export   *ExportHandler
	replay   *ReplayHandler
	health   *HealthHandler
	bridge   *ws.Bridge
}

// NewHandler собирает handlers в один объект.
func NewHandler(
	webhooks *WebhooksHandler,
	batch *BatchHandler,
	search *SearchHandler,
	stats *StatsHandler,
	export *ExportHandler,
	replay *ReplayHandler,
	health *HealthHandler,
	bridge *ws.Bridge,
) *Handler {
	return &Handler{
		webhooks: webhooks,
		batch:    batch,
		search:   search,
		stats:    stats,
		export:   export,
		replay:   replay,
		health:   health,
		bridge:   bridge,
	}
}

// Routes регистрирует маршруты основного API.
func (h *Handler) Routes(r chi.Router) {
	// Запись в корень попадает в категорию по умолчанию.
	r.Post("/", h.webhooks.Create)
	r.Get("/", h.webhooks.List)

	r.Get("/_search", h.search.Search)
	r.Get("/_stats", h.stats.Stats)
	r.Get("/_export", h.export.ExportAll)
	r.Post("/_import", h.export.Import)
	r.Handle("/_metrics", promhttp.Handler())
	r.Get("/_ws", h.bridge.ServeHTTP)

	r.Route("/{category}", func(r chi.Router) {
		r.Post("/", h.webhooks.Create)
		r.Get("/", h.webhooks.List)

		r.Post("/_batch", h.batch.BatchCreate)
		r.Delete("/_batch", h.batch.BatchDelete)
		r.Get("/_export", h.export.ExportCategory)

		r.Get("/{key}", h.webhooks.Get)
		r.Patch("/{key}", h.webhooks.Patch)
		r.Delete("/{key}", h.webhooks.Delete)
		r.Post("/{key}/_replay", h.replay.Replay)
	})
}

// HealthRoutes регистрирует health-маршруты (вне базового пути API).
func (h *Handler) HealthRoutes(r chi.Router) {
	r.Get("/health/live", h.health.Live)
	r.Get("/health/ready", h.health.Ready)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoBody):
		apierrors.NoBody(w, "Тело запроса отсутствует")
	case errors.Is(err, service.ErrInvalidJSON):
		apierrors.InvalidJSON(w, "Тело запроса не является корректным JSON")
	case errors.Is(err, service.ErrInvalidTTL):
		apierrors.ValidationError(w, "Недопустимое значение ttl")
	case errors.Is(err, service.ErrKeyNotFound):
		apierrors.KeyNotFound(w, "Ключ не найден")
	case errors.Is(err, service.ErrInvalidSnapshot):
		apierrors.ValidationError(w, "Недопустимый формат снапшота")
	case errors.Is(err, quota.ErrPayloadTooLarge):
		apierrors.PayloadTooLarge(w, "Тело превышает максимальный размер")
	case errors.Is(err, quota.ErrStorageLimit):
		apierrors.StorageLimitExceeded(w, "Превышен общий лимит хранилища")
	default:
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// serviceErrorCode возвращает машинный код ошибки сервисного слоя
// для поэлементных отчётов пакетных операций.
func serviceErrorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrNoBody):
		return apierrors.CodeNoBody
	case errors.Is(err, service.ErrInvalidJSON):
		return apierrors.CodeInvalidJSON
	case errors.Is(err, service.ErrInvalidTTL):
		return apierrors.CodeValidationError
	case errors.Is(err, service.ErrKeyNotFound):
		return apierrors.CodeKeyNotFound
	case errors.Is(err, quota.ErrPayloadTooLarge):
		return apierrors.CodePayloadTooLarge
	case errors.Is(err, quota.ErrStorageLimit):
		return apierrors.CodeStorageLimitExceeded
	default:
		return apierrors.CodeInternalError
	}
}
