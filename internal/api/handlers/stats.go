// stats.go — HTTP handler статистики хранилища.
package handlers

import (
	"net/http"

	"github.com/bigkaa/hookstore/internal/service"
)

// StatsHandler — обработчик GET /_stats.
type StatsHandler struct {
	records *service.RecordService
}

// NewStatsHandler создаёт обработчик статистики.
func NewStatsHandler(records *service.RecordService) *StatsHandler {
	return &StatsHandler{records: records}
}

// Stats обрабатывает GET /_stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.records.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
