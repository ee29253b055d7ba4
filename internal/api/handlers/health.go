// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/hookstore/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// StorePinger — интерфейс проверки доступности хранилища.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// IndexReadinessChecker — интерфейс проверки готовности индекса.
type IndexReadinessChecker interface {
	IsReady() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	store   StorePinger
	idx     IndexReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(store StorePinger, idx IndexReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		store:   store,
		idx:     idx,
	}
}

// Live обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "hookstore",
	})
}

// Ready обрабатывает GET /health/ready.
// Проверяет: доступность хранилища (Ping), готовность индекса.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Проверка хранилища
	storeCheck := map[string]any{"status": "ok"}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		storeCheck["status"] = statusFail
		storeCheck["message"] = err.Error()
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка индекса
	indexCheck := map[string]any{"status": "ok"}
	if h.idx != nil && !h.idx.IsReady() {
		indexCheck["status"] = statusFail
		indexCheck["message"] = "Индекс не построен"
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "hookstore",
		"checks": map[string]any{
			"store": storeCheck,
			"index": indexCheck,
		},
	})
}
