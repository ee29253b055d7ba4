// metrics.go — Prometheus HTTP метрики сервиса hookstore.
// Регистрирует метрики: webhook_requests_total, webhook_http_request_duration_seconds.
// Бизнес-метрики (webhook_created_total, webhook_storage_bytes и др.)
// экспортируются отсюда и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Общее количество HTTP-запросов к hookstore",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к hookstore в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// CreatedTotal — количество созданных записей (create, replay, import).
	CreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_created_total",
		Help: "Общее количество созданных записей webhook",
	})

	// DeletedTotal — количество явно удалённых записей.
	DeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_deleted_total",
		Help: "Общее количество удалённых записей webhook",
	})

	// StorageBytes — текущий объём занятого бюджета хранилища (gauge).
	StorageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_storage_bytes",
		Help: "Объём занятых байт глобального бюджета хранилища",
	})

	// WebhookCount — текущее количество живых записей (gauge).
	WebhookCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_count",
		Help: "Текущее количество живых записей webhook",
	})

	// AuthMissingTotal — количество запросов без API-ключа.
	AuthMissingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_auth_missing_total",
		Help: "Количество запросов, отклонённых из-за отсутствия API-ключа",
	})

	// AuthInvalidTotal — количество запросов с неизвестным API-ключом.
	AuthInvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_auth_invalid_total",
		Help: "Количество запросов, отклонённых из-за неизвестного API-ключа",
	})
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// В лейбле path используется шаблон маршрута chi ("/{category}/{key}"),
// а не фактический путь — категории и ключи произвольны, и сырые пути
// взорвали бы кардинальность метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
