// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every body is either a payload, a status message with its tone, or an
// error message, so clients can render feedback without guessing.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetbeacon/internal/backend"
	"budgetbeacon/internal/core"
	"budgetbeacon/internal/services"
)

// StatusBody is the body of a successful mutation.
type StatusBody struct {
	Message string    `json:"message"`
	Tone    core.Tone `json:"tone"`
	Data    any       `json:"data,omitempty"`
}

// ErrorBody is the body of every failed request.
type ErrorBody struct {
	Error string    `json:"error"`
	Tone  core.Tone `json:"tone"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	raw        []byte
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Message sets a status message body. The tone is inferred from the wording.
func (b *JSONResponseBuilder) Message(message string, data any) *JSONResponseBuilder {
	b.payload = StatusBody{Message: message, Tone: core.InferTone(message), Data: data}
	return b
}

// Attachment sends body as a download named filename.
func (b *JSONResponseBuilder) Attachment(contentType, filename string, body []byte) *JSONResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = `attachment; filename="` + filename + `"`
	b.raw = body
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.raw != nil {
		w.WriteHeader(b.statusCode)
		_, _ = w.Write(b.raw)
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if b.payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.payload); err != nil {
		slog.Error("Failed to encode response", "error", err, "status_code", b.statusCode)
	}
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: message, Tone: core.ToneError})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// domainErrors maps service errors to a status and a user-facing message.
// Order matters: the first match wins.
var domainErrors = []struct {
	target  error
	status  int
	message string
}{
	{core.ErrInvalidAmount, http.StatusUnprocessableEntity, "Enter a valid amount."},
	{core.ErrNegativeAmount, http.StatusUnprocessableEntity, "Enter a valid amount."},
	{core.ErrBlankCategory, http.StatusUnprocessableEntity, "Pick a category."},
	{core.ErrInvalidEntryType, http.StatusUnprocessableEntity, "Pick income or expense."},
	{core.ErrInvalidFrequency, http.StatusUnprocessableEntity, "Pick a valid frequency."},
	{core.ErrInvalidDate, http.StatusUnprocessableEntity, "Enter a valid date (YYYY-MM-DD)."},
	{core.ErrNotAnObject, http.StatusBadRequest, "Request body must be a JSON object."},
	{core.ErrEntryNotFound, http.StatusNotFound, "Entry not found."},
	{core.ErrRuleNotFound, http.StatusNotFound, "Recurring rule not found."},
	{core.ErrCategoryNotFound, http.StatusNotFound, "Category not found."},
	{core.ErrCategoryExists, http.StatusConflict, "Category already exists."},
	{core.ErrFallbackCategory, http.StatusConflict, "The fallback category cannot be renamed or deleted."},
	{services.ErrNoCSVRows, http.StatusUnprocessableEntity, "No valid rows were found in this CSV file."},
	{backend.ErrPersistFailed, http.StatusServiceUnavailable, "Could not save data. Changes are kept until the next save."},
}

// DomainError converts a service error into an error response. Unknown errors
// become a 500 without leaking their text.
func DomainError(err error) *JSONResponseBuilder {
	if services.IsLoadError(err) {
		return BadRequestError("Could not import backup file.")
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return ErrorResponse(m.status, m.message)
		}
	}
	return InternalServerError("Something went wrong. Please try again.")
}
