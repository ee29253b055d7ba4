// Пакет config — загрузка и валидация конфигурации hookstore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации hookstore.
// Строится один раз при старте и передаётся по ссылке во все компоненты;
// приоритет: переменная окружения > встроенное значение по умолчанию.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Базовый путь HTTP API (например, "/webhook")
	BasePath string
	// Бэкенд хранилища: valkey или memory
	Store string
	// Адрес Valkey (host:port)
	ValkeyAddr string
	// Номер базы Valkey
	ValkeyDB int
	// Префикс всех ключей в хранилище (изоляция инстансов)
	KeyPrefix string
	// Категория по умолчанию для POST без категории
	DefaultCategory string
	// TTL записи по умолчанию в секундах
	DefaultTTL int64
	// Максимальный размер тела записи в байтах
	MaxBodySize int64
	// Общий бюджет хранилища в байтах
	TotalPayloadLimit int64
	// API-ключи; пустой список отключает аутентификацию
	APIKeys []string
	// Суффиксы путей, освобождённые от аутентификации
	AuthExempt []string
	// Интервал фоновой сверки индекса и счётчика квоты
	ReconcileInterval time.Duration
	// Размер LRU-кэша записей
	CacheSize int
	// TTL элемента LRU-кэша
	CacheTTL time.Duration
	// Размер очереди отправки на одного WS-клиента
	WSSendBuffer int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// DataKeyPrefix возвращает префикс ключей записей в хранилище.
func (c *Config) DataKeyPrefix() string {
	return c.KeyPrefix + "data:"
}

// DataKey возвращает полный ключ хранилища для ключа записи.
func (c *Config) DataKey(recordKey string) string {
	return c.DataKeyPrefix() + recordKey
}

// CounterKey возвращает имя глобального счётчика занятых байт.
func (c *Config) CounterKey() string {
	return c.KeyPrefix + "total_size"
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// WH_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("WH_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("WH_PORT: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("WH_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// WH_BASE_PATH — базовый путь API (по умолчанию "/webhook")
	cfg.BasePath = getEnvDefault("WH_BASE_PATH", "/webhook")
	if !strings.HasPrefix(cfg.BasePath, "/") {
		return nil, fmt.Errorf("WH_BASE_PATH: путь %q должен начинаться с '/'", cfg.BasePath)
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")

	// WH_STORE — бэкенд хранилища (по умолчанию valkey)
	cfg.Store = getEnvDefault("WH_STORE", "valkey")
	if cfg.Store != "valkey" && cfg.Store != "memory" {
		return nil, fmt.Errorf("WH_STORE: недопустимое значение %q, допустимые: valkey, memory", cfg.Store)
	}

	// WH_VALKEY_ADDR — адрес Valkey (по умолчанию 127.0.0.1:6379)
	cfg.ValkeyAddr = getEnvDefault("WH_VALKEY_ADDR", "127.0.0.1:6379")

	// WH_VALKEY_DB — номер базы Valkey (по умолчанию 0)
	cfg.ValkeyDB, err = getEnvInt("WH_VALKEY_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("WH_VALKEY_DB: %w", err)
	}

	// WH_KEY_PREFIX — префикс ключей (по умолчанию "webhook:")
	cfg.KeyPrefix = getEnvDefault("WH_KEY_PREFIX", "webhook:")

	// WH_DEFAULT_CATEGORY — категория по умолчанию (по умолчанию "default")
	cfg.DefaultCategory = getEnvDefault("WH_DEFAULT_CATEGORY", "default")

	// WH_DEFAULT_TTL — TTL по умолчанию в секундах (по умолчанию 259200 — 3 дня)
	cfg.DefaultTTL, err = getEnvInt64("WH_DEFAULT_TTL", 259200)
	if err != nil {
		return nil, fmt.Errorf("WH_DEFAULT_TTL: %w", err)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("WH_DEFAULT_TTL: значение должно быть положительным")
	}

	// WH_MAX_BODY_SIZE — максимальный размер тела (по умолчанию 1 MB)
	cfg.MaxBodySize, err = getEnvInt64("WH_MAX_BODY_SIZE", 1048576)
	if err != nil {
		return nil, fmt.Errorf("WH_MAX_BODY_SIZE: %w", err)
	}
	if cfg.MaxBodySize <= 0 {
		return nil, fmt.Errorf("WH_MAX_BODY_SIZE: значение должно быть положительным")
	}

	// WH_TOTAL_PAYLOAD_LIMIT — общий бюджет хранилища (по умолчанию 100 MB)
	cfg.TotalPayloadLimit, err = getEnvInt64("WH_TOTAL_PAYLOAD_LIMIT", 104857600)
	if err != nil {
		return nil, fmt.Errorf("WH_TOTAL_PAYLOAD_LIMIT: %w", err)
	}
	if cfg.TotalPayloadLimit < cfg.MaxBodySize {
		return nil, fmt.Errorf("WH_TOTAL_PAYLOAD_LIMIT: значение %d должно быть >= WH_MAX_BODY_SIZE (%d)",
			cfg.TotalPayloadLimit, cfg.MaxBodySize)
	}

	// WH_API_KEYS — список API-ключей через запятую (пусто = аутентификация отключена)
	cfg.APIKeys = splitNonEmpty(getEnvDefault("WH_API_KEYS", ""))

	// WH_AUTH_EXEMPT — суффиксы путей без аутентификации
	// _metrics намеренно не исключён: экспозиция раскрывает объёмы трафика
	cfg.AuthExempt = splitNonEmpty(getEnvDefault("WH_AUTH_EXEMPT", "_stats,/health/live,/health/ready"))

	// WH_RECONCILE_INTERVAL — интервал фоновой сверки (по умолчанию 5m)
	cfg.ReconcileInterval, err = getEnvDuration("WH_RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WH_RECONCILE_INTERVAL: %w", err)
	}

	// WH_CACHE_SIZE — размер LRU-кэша записей (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("WH_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("WH_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("WH_CACHE_SIZE: значение должно быть положительным")
	}

	// WH_CACHE_TTL — TTL элемента кэша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("WH_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WH_CACHE_TTL: %w", err)
	}

	// WH_WS_SEND_BUFFER — очередь отправки WS-клиента (по умолчанию 32)
	cfg.WSSendBuffer, err = getEnvInt("WH_WS_SEND_BUFFER", 32)
	if err != nil {
		return nil, fmt.Errorf("WH_WS_SEND_BUFFER: %w", err)
	}
	if cfg.WSSendBuffer <= 0 {
		return nil, fmt.Errorf("WH_WS_SEND_BUFFER: значение должно быть положительным")
	}

	// WH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("WH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("WH_LOG_LEVEL: %w", err)
	}

	// WH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("WH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("WH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// WH_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("WH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WH_SHUTDOWN_TIMEOUT: %w", err)
	}

	// Таймауты HTTP-сервера
	cfg.HTTPReadTimeout, err = getEnvDuration("WH_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WH_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("WH_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WH_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("WH_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WH_HTTP_IDLE_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// splitNonEmpty разбивает строку по запятым, отбрасывая пустые элементы.
func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
