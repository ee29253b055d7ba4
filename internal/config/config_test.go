package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: хотели 8080, получили %d", cfg.Port)
	}
	if cfg.BasePath != "/webhook" {
		t.Errorf("BasePath: хотели /webhook, получили %s", cfg.BasePath)
	}
	if cfg.Store != "valkey" {
		t.Errorf("Store: хотели valkey, получили %s", cfg.Store)
	}
	if cfg.DefaultCategory != "default" {
		t.Errorf("DefaultCategory: хотели default, получили %s", cfg.DefaultCategory)
	}
	if cfg.DefaultTTL != 259200 {
		t.Errorf("DefaultTTL: хотели 259200, получили %d", cfg.DefaultTTL)
	}
	if cfg.MaxBodySize != 1048576 {
		t.Errorf("MaxBodySize: хотели 1048576, получили %d", cfg.MaxBodySize)
	}
	for _, suffix := range cfg.AuthExempt {
		if suffix == "_metrics" {
			t.Error("Экспозиция метрик не должна быть исключена из аутентификации по умолчанию")
		}
	}
	if len(cfg.AuthExempt) != 3 {
		t.Errorf("AuthExempt: хотели 3 исключения, получили %v", cfg.AuthExempt)
	}
	if cfg.TotalPayloadLimit != 104857600 {
		t.Errorf("TotalPayloadLimit: хотели 104857600, получили %d", cfg.TotalPayloadLimit)
	}
	if len(cfg.APIKeys) != 0 {
		t.Errorf("APIKeys: хотели пустой список, получили %v", cfg.APIKeys)
	}
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Errorf("ReconcileInterval: хотели 5m, получили %s", cfg.ReconcileInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WH_PORT", "9090")
	t.Setenv("WH_DEFAULT_CATEGORY", "cfg")
	t.Setenv("WH_DEFAULT_TTL", "4242")
	t.Setenv("WH_MAX_BODY_SIZE", "256")
	t.Setenv("WH_TOTAL_PAYLOAD_LIMIT", "360")
	t.Setenv("WH_API_KEYS", "key1, key2")
	t.Setenv("WH_STORE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: хотели 9090, получили %d", cfg.Port)
	}
	if cfg.DefaultCategory != "cfg" {
		t.Errorf("DefaultCategory: хотели cfg, получили %s", cfg.DefaultCategory)
	}
	if cfg.DefaultTTL != 4242 {
		t.Errorf("DefaultTTL: хотели 4242, получили %d", cfg.DefaultTTL)
	}
	if cfg.MaxBodySize != 256 {
		t.Errorf("MaxBodySize: хотели 256, получили %d", cfg.MaxBodySize)
	}
	if cfg.TotalPayloadLimit != 360 {
		t.Errorf("TotalPayloadLimit: хотели 360, получили %d", cfg.TotalPayloadLimit)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[0] != "key1" || cfg.APIKeys[1] != "key2" {
		t.Errorf("APIKeys: %v", cfg.APIKeys)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store: хотели memory, получили %s", cfg.Store)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"порт вне диапазона", "WH_PORT", "70000"},
		{"порт не число", "WH_PORT", "abc"},
		{"неизвестный бэкенд", "WH_STORE", "postgres"},
		{"отрицательный ttl", "WH_DEFAULT_TTL", "-1"},
		{"нулевой максимальный размер", "WH_MAX_BODY_SIZE", "0"},
		{"путь без слэша", "WH_BASE_PATH", "webhook"},
		{"неизвестный формат логов", "WH_LOG_FORMAT", "xml"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s: хотели ошибку, получили nil", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_LimitBelowMaxBody(t *testing.T) {
	t.Setenv("WH_MAX_BODY_SIZE", "1000")
	t.Setenv("WH_TOTAL_PAYLOAD_LIMIT", "500")

	if _, err := Load(); err == nil {
		t.Error("Бюджет меньше максимального тела: хотели ошибку, получили nil")
	}
}

func TestConfig_KeyHelpers(t *testing.T) {
	cfg := &Config{KeyPrefix: "webhook:"}

	if got := cfg.DataKeyPrefix(); got != "webhook:data:" {
		t.Errorf("DataKeyPrefix: хотели webhook:data:, получили %s", got)
	}
	if got := cfg.DataKey("orders:abc"); got != "webhook:data:orders:abc" {
		t.Errorf("DataKey: получили %s", got)
	}
	if got := cfg.CounterKey(); got != "webhook:total_size" {
		t.Errorf("CounterKey: получили %s", got)
	}
}
