// auth.go — middleware аутентификации по статическому API-ключу.
//
// Ключ передаётся в заголовке X-API-Key либо как Authorization: Bearer
// и сверяется со списком из конфигурации. Пустой список ключей
// полностью отключает аутентификацию. Пути из списка исключений
// (суффиксы, например "_stats") проходят без проверки — они нужны
// мониторингу и probe-ам.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
)

// HeaderAPIKey — имя заголовка с API-ключом.
const HeaderAPIKey = "X-API-Key"

// bearerPrefix — схема заголовка Authorization с API-ключом.
const bearerPrefix = "Bearer "

// APIKeyAuth — middleware аутентификации по API-ключу.
type APIKeyAuth struct {
	keys   map[string]struct{}
	exempt []string
	logger *slog.Logger
}

// NewAPIKeyAuth создаёт middleware аутентификации.
// keys — допустимые ключи (пусто = аутентификация отключена),
// exempt — суффиксы путей без проверки.
func NewAPIKeyAuth(keys, exempt []string, logger *slog.Logger) *APIKeyAuth {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	return &APIKeyAuth{
		keys:   keySet,
		exempt: exempt,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Enabled возвращает true, если настроен хотя бы один ключ.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.keys) > 0
}

// isExempt проверяет, освобождён ли путь от аутентификации.
func (a *APIKeyAuth) isExempt(path string) bool {
	for _, suffix := range a.exempt {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// apiKeyFrom извлекает ключ из запроса: сначала X-API-Key,
// затем Authorization: Bearer.
func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return ""
}

// Middleware возвращает HTTP middleware проверки API-ключа.
// Отсутствующий ключ — 401 AUTH_REQUIRED, неизвестный — 403 AUTH_INVALID.
func (a *APIKeyAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() || a.isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := apiKeyFrom(r)
			if key == "" {
				AuthMissingTotal.Inc()
				a.logger.Warn("Запрос без API-ключа",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.AuthRequired(w, "Требуется заголовок "+HeaderAPIKey+" или Authorization: Bearer")
				return
			}

			if _, ok := a.keys[key]; !ok {
				AuthInvalidTotal.Inc()
				a.logger.Warn("Запрос с неизвестным API-ключом",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.AuthInvalid(w, "Неизвестный API-ключ")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
