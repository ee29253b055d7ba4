// cache.go — LRU-кэш записей с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/hookstore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// CacheService — LRU-кэш записей с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш.
type CacheService struct {
	cache *expirable.LRU[string, *model.Record]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.Record](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись из кэша по ключу.
// Запись, чей собственный TTL истёк раньше TTL кэша, считается промахом
// и удаляется — кэш никогда не отдаёт истёкшие записи.
func (c *CacheService) Get(key string) (*model.Record, bool) {
	rec, ok := c.cache.Get(key)
	if ok && rec.IsExpired(time.Now()) {
		c.cache.Remove(key)
		ok = false
	}
	if ok {
		cacheHitsTotal.Inc()
		return rec, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(key string, rec *model.Record) {
	c.cache.Add(key, rec)
}

// Delete удаляет запись из кэша (инвалидация при patch/delete).
func (c *CacheService) Delete(key string) {
	c.cache.Remove(key)
}
