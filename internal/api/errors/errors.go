// Пакет errors — конструкторы стандартных ошибок HTTP API hookstore.
// Единый формат: {"error_code": "...", "message": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib допустим внутри internal/api

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeNoBody               = "NO_BODY"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeMissingQuery         = "MISSING_QUERY"
	CodeInvalidBatchFormat   = "INVALID_BATCH_FORMAT"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeAuthInvalid          = "AUTH_INVALID"
	CodeKeyNotFound          = "KEY_NOT_FOUND"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeStorageLimitExceeded = "STORAGE_LIMIT_EXCEEDED"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		ErrorCode: code,
		Message:   message,
	})
}

// --- Конструкторы для типичных ошибок ---

// NoBody — 400 пустое тело запроса.
func NoBody(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeNoBody, message)
}

// InvalidJSON — 400 тело не является корректным JSON.
func InvalidJSON(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidJSON, message)
}

// MissingQuery — 400 отсутствует обязательный параметр q.
func MissingQuery(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeMissingQuery, message)
}

// InvalidBatchFormat — 400 некорректный формат пакетного запроса.
func InvalidBatchFormat(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidBatchFormat, message)
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// AuthRequired — 401 требуется API-ключ.
func AuthRequired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeAuthRequired, message)
}

// AuthInvalid — 403 предъявлен неизвестный API-ключ.
func AuthInvalid(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeAuthInvalid, message)
}

// KeyNotFound — 404 ключ отсутствует или истёк.
func KeyNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeKeyNotFound, message)
}

// PayloadTooLarge — 413 тело превышает per-item лимит.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// StorageLimitExceeded — 413 агрегатный бюджет хранилища исчерпан.
func StorageLimitExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeStorageLimitExceeded, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// StoreUnavailable — 503 внешнее хранилище недоступно.
func StoreUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, message)
}
