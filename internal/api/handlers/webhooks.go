// webhooks.go — HTTP handlers жизненного цикла записей.
// Create, List, Get, Patch, Delete.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/config"
	"github.com/bigkaa/hookstore/internal/service"
)

// WebhooksHandler — обработчик endpoints одиночных записей.
type WebhooksHandler struct {
	records *service.RecordService
	cfg     *config.Config
}

// NewWebhooksHandler создаёт обработчик записей.
func NewWebhooksHandler(records *service.RecordService, cfg *config.Config) *WebhooksHandler {
	return &WebhooksHandler{records: records, cfg: cfg}
}

// readBody читает тело запроса не длиннее лимита MAX_BODY_SIZE.
// Превышение лимита определяется по одному лишнему байту, без
// буферизации всего тела в памяти. false — ответ уже записан.
func readBody(w http.ResponseWriter, r *http.Request, maxBody int64) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения тела запроса")
		return nil, false
	}
	if int64(len(body)) > maxBody {
		apierrors.PayloadTooLarge(w, "Тело превышает максимальный размер")
		return nil, false
	}
	return body, true
}

// writeJSON сериализует ответ.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Create обрабатывает POST /{category}.
// Query-параметры: ttl (секунды), callback_url.
func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, h.cfg.MaxBodySize)
	if !ok {
		return
	}

	var ttl int64
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			apierrors.ValidationError(w, "Параметр ttl должен быть положительным целым")
			return
		}
		ttl = parsed
	}

	rec, err := h.records.Create(r.Context(), service.CreateParams{
		Category:    chi.URLParam(r, "category"),
		Body:        body,
		TTLSeconds:  ttl,
		CallbackURL: r.URL.Query().Get("callback_url"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "stored",
		"category":            rec.Category,
		"key":                 rec.Key,
		"ttl":                 rec.TTLSeconds,
		"callback_registered": rec.CallbackURL != nil,
	})
}

// List обрабатывает GET / и GET /{category}.
// Query-параметр since — unix-время, отсекающее старые записи.
func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apierrors.ValidationError(w, "Параметр since должен быть unix-временем")
			return
		}
		since = time.Unix(ts, 0)
	}

	keys := h.records.List(chi.URLParam(r, "category"), since)

	writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// Get обрабатывает GET /{category}/{key}.
func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// patchRequest — тело PATCH-запроса. callback_url хранится сырым,
// чтобы отличать отсутствие поля от явного null (сброс).
type patchRequest struct {
	TTL         *int64          `json:"ttl"`
	CallbackURL json.RawMessage `json:"callback_url"`
}

// Patch обрабатывает PATCH /{category}/{key}.
// Мутируются только ttl и callback_url; callback_url: null сбрасывает.
func (h *WebhooksHandler) Patch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, h.cfg.MaxBodySize)
	if !ok {
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		apierrors.NoBody(w, "Тело запроса отсутствует")
		return
	}

	var req patchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apierrors.InvalidJSON(w, "Тело запроса не является корректным JSON")
		return
	}

	params := service.PatchParams{TTLSeconds: req.TTL}
	if len(req.CallbackURL) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.CallbackURL), []byte("null")) {
			params.ClearCallback = true
		} else {
			var cb string
			if err := json.Unmarshal(req.CallbackURL, &cb); err != nil {
				apierrors.ValidationError(w, "Поле callback_url должно быть строкой или null")
				return
			}
			params.CallbackURL = &cb
		}
	}

	rec, changes, err := h.records.Patch(r.Context(), chi.URLParam(r, "key"), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "updated",
		"ttl":     rec.TTLSeconds,
		"changes": changes,
	})
}

// Delete обрабатывает DELETE /{category}/{key}.
func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := h.records.Delete(r.Context(), key); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "deleted",
		"key":    key,
	})
}
