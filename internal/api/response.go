package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/store"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Violations — список нарушений схемы (для ошибок валидации).
	Violations []string `json:"violations,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Forbidden отправляет ошибку 403.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// ValidationFailed отправляет ошибку 400 со списком нарушений.
func ValidationFailed(w http.ResponseWriter, violations []string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:       ErrCodeBadRequest,
			Message:    "input validation failed",
			Violations: violations,
		},
	})
}

// HandleDomainError преобразует доменную ошибку в HTTP ответ.
// Возвращает true, если ошибка была обработана.
func HandleDomainError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		ValidationFailed(w, verr.Violations)
		return true
	}

	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, resource.ErrNotFound),
		errors.Is(err, capability.ErrNotFound),
		errors.Is(err, engine.ErrTaskNotFound),
		errors.Is(err, engine.ErrTemplateNotFound):
		NotFound(w, err.Error())

	case errors.Is(err, resource.ErrAccessDenied),
		errors.Is(err, capability.ErrUnauthorized):
		Forbidden(w, err.Error())

	case errors.Is(err, resource.ErrAlreadyLocked),
		errors.Is(err, resource.ErrNotLockHolder),
		errors.Is(err, engine.ErrTaskAlreadyActive):
		Conflict(w, err.Error())

	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrTemplateInactive):
		InvalidState(w, err.Error())

	case errors.Is(err, catalog.ErrInvalidTemplate),
		errors.Is(err, resource.ErrInvalidResource),
		errors.Is(err, capability.ErrInvalidDescriptor),
		errors.Is(err, capability.ErrSchemaViolation):
		BadRequest(w, err.Error())

	default:
		InternalError(w, logger, err)
	}
	return true
}
