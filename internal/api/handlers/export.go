// export.go — HTTP handlers экспорта и импорта снапшотов.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/domain/model"
	"github.com/bigkaa/hookstore/internal/service"
)

// ExportHandler — обработчик endpoints экспорта и импорта.
type ExportHandler struct {
	replay *service.ReplayService
}

// NewExportHandler создаёт обработчик экспорта/импорта.
func NewExportHandler(replay *service.ReplayService) *ExportHandler {
	return &ExportHandler{replay: replay}
}

// ExportAll обрабатывает GET /_export.
func (h *ExportHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "")
}

// ExportCategory обрабатывает GET /{category}/_export.
func (h *ExportHandler) ExportCategory(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, chi.URLParam(r, "category"))
}

func (h *ExportHandler) export(w http.ResponseWriter, r *http.Request, category string) {
	snap, err := h.replay.Export(r.Context(), category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Import обрабатывает POST /_import.
// Тело — снапшот формата /_export. Записи получают новые ключи и
// проходят обычный путь создания, включая квоту и события.
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	// Лимит тела снапшота сознательно не привязан к MAX_BODY_SIZE:
	// снапшот содержит много записей. Каждую запись по отдельности
	// проверит квота.
	var snap model.ExportSnapshot
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&snap); err != nil {
		apierrors.InvalidJSON(w, "Тело запроса не является корректным снапшотом")
		return
	}

	result, err := h.replay.Import(r.Context(), &snap)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	failed := make([]batchItemError, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, batchItemError{Index: f.Index, Error: serviceErrorCode(f.Err)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "imported",
		"total_imported": result.Imported,
		"failed":         failed,
	})
}
