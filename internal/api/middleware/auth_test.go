package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func authHandler(keys, exempt []string) http.Handler {
	auth := NewAPIKeyAuth(keys, exempt, testLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return auth.Middleware()(next)
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	code, _ := body["error_code"].(string)
	return code
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	handler := authHandler([]string{"secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Статус: хотели 401, получили %d", rec.Code)
	}
	if errorCodeOf(t, rec) != "AUTH_REQUIRED" {
		t.Errorf("Код: %s", errorCodeOf(t, rec))
	}
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	handler := authHandler([]string{"secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
	req.Header.Set(HeaderAPIKey, "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Статус: хотели 403, получили %d", rec.Code)
	}
	if errorCodeOf(t, rec) != "AUTH_INVALID" {
		t.Errorf("Код: %s", errorCodeOf(t, rec))
	}
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	handler := authHandler([]string{"secret", "second"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
	req.Header.Set(HeaderAPIKey, "second")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Статус: хотели 200, получили %d", rec.Code)
	}
}

func TestAPIKeyAuth_BearerToken(t *testing.T) {
	handler := authHandler([]string{"secret"}, nil)

	t.Run("корректный ключ", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Статус: хотели 200, получили %d", rec.Code)
		}
	})

	t.Run("неизвестный ключ", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Статус: хотели 403, получили %d", rec.Code)
		}
	})

	t.Run("чужая схема", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/orders", nil)
		req.Header.Set("Authorization", "Basic c2VjcmV0")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Статус: хотели 401, получили %d", rec.Code)
		}
	})
}

func TestAPIKeyAuth_ExemptPath(t *testing.T) {
	handler := authHandler([]string{"secret"}, []string{"_stats", "/health/live"})

	for _, path := range []string{"/webhook/_stats", "/health/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s без ключа: хотели 200, получили %d", path, rec.Code)
		}
	}
}

func TestAPIKeyAuth_Enabled(t *testing.T) {
	if NewAPIKeyAuth(nil, nil, testLogger()).Enabled() {
		t.Error("Без ключей аутентификация должна быть выключена")
	}
	if !NewAPIKeyAuth([]string{"k"}, nil, testLogger()).Enabled() {
		t.Error("С ключами аутентификация должна быть включена")
	}
}
