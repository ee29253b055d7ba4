// replay.go — HTTP handler повторной доставки записи.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/service"
)

// ReplayHandler — обработчик POST /{category}/{key}/_replay.
type ReplayHandler struct {
	replay *service.ReplayService
}

// NewReplayHandler создаёт обработчик replay.
func NewReplayHandler(replay *service.ReplayService) *ReplayHandler {
	return &ReplayHandler{replay: replay}
}

// Replay обрабатывает POST /{category}/{key}/_replay.
// Query-параметры category и ttl переопределяют значения копии.
func (h *ReplayHandler) Replay(w http.ResponseWriter, r *http.Request) {
	sourceKey := chi.URLParam(r, "key")

	var ttl int64
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			apierrors.ValidationError(w, "Параметр ttl должен быть положительным целым")
			return
		}
		ttl = parsed
	}

	rec, err := h.replay.Replay(r.Context(), sourceKey, service.ReplayParams{
		Category:   r.URL.Query().Get("category"),
		TTLSeconds: ttl,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "replayed",
		"original_key": sourceKey,
		"new_key":      rec.Key,
		"category":     rec.Category,
		"ttl":          rec.TTLSeconds,
	})
}
