// search.go — HTTP handler полнотекстового поиска по записям.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/service"
)

// SearchHandler — обработчик GET /_search.
type SearchHandler struct {
	records *service.RecordService
}

// NewSearchHandler создаёт обработчик поиска.
func NewSearchHandler(records *service.RecordService) *SearchHandler {
	return &SearchHandler{records: records}
}

// Search обрабатывает GET /_search?q=<text>.
// Поиск подстроки по сериализованным значениям без учёта регистра.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		apierrors.MissingQuery(w, "Обязательный параметр q отсутствует")
		return
	}

	results, err := h.records.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"count":   len(results),
		"results": results,
	})
}
