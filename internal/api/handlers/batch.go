// batch.go — HTTP handlers пакетных операций.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/hookstore/internal/api/errors"
	"github.com/bigkaa/hookstore/internal/service"
)

// BatchHandler — обработчик пакетных endpoints.
type BatchHandler struct {
	batch *service.BatchService
}

// NewBatchHandler создаёт обработчик пакетных операций.
func NewBatchHandler(batch *service.BatchService) *BatchHandler {
	return &BatchHandler{batch: batch}
}

// readBatchBody читает тело пакетного запроса.
// Лимит MAX_BODY_SIZE применяется к каждому элементу отдельно,
// а не к пакету целиком.
func readBatchBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения тела запроса")
		return nil, false
	}
	return body, true
}

// batchCreateRequest — тело POST /{category}/_batch.
// Указатель на срез отличает отсутствующее поле items от пустого
// массива: первое — ошибка формата, второе — валидный пустой пакет.
type batchCreateRequest struct {
	Items *[]json.RawMessage `json:"items"`
}

// batchDeleteRequest — тело DELETE /{category}/_batch.
type batchDeleteRequest struct {
	Keys *[]string `json:"keys"`
}

// batchItemError — отказ по элементу в ответе пакетной операции.
type batchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// batchCreatedItem — успешный элемент в ответе пакетного создания.
type batchCreatedItem struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	TTL      int64  `json:"ttl"`
}

// BatchCreate обрабатывает POST /{category}/_batch.
// Формат тела проверяется целиком до обработки первого элемента.
func (h *BatchHandler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBatchBody(w, r)
	if !ok {
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		apierrors.NoBody(w, "Тело запроса отсутствует")
		return
	}

	var req batchCreateRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Items == nil {
		apierrors.InvalidBatchFormat(w, "Ожидается объект с полем items")
		return
	}

	result := h.batch.CreateBatch(r.Context(), chi.URLParam(r, "category"), *req.Items)

	success := make([]batchCreatedItem, 0, len(result.Created))
	for _, c := range result.Created {
		success = append(success, batchCreatedItem{Key: c.Key, Category: c.Category, TTL: c.TTL})
	}
	failed := make([]batchItemError, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, batchItemError{Index: f.Index, Error: serviceErrorCode(f.Err)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       success,
		"failed":        failed,
		"total_created": len(success),
		"total_failed":  len(failed),
	})
}

// BatchDelete обрабатывает DELETE /{category}/_batch.
// Отсутствующие ключи не считаются ошибкой; пустой список — no-op.
func (h *BatchHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	body, ok := readBatchBody(w, r)
	if !ok {
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		apierrors.NoBody(w, "Тело запроса отсутствует")
		return
	}

	var req batchDeleteRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Keys == nil {
		apierrors.InvalidBatchFormat(w, "Ожидается объект с полем keys")
		return
	}

	result, err := h.batch.DeleteBatch(r.Context(), *req.Keys)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_deleted": result.Deleted,
	})
}
