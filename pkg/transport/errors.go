package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/tasks"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Unknown types map to 500.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeForbidden:
		return http.StatusForbidden
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	case api.ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case api.ErrorTypeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeServerError, api.ErrorTypeModelError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	if statusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError classifies err and writes the matching error response.
// Unclassified errors are logged and reported as a generic server error so
// that internal details never reach the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Type == api.ErrorTypeServerError {
		slog.Error("request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteAPIError(w, apiErr)
}

// ToAPIError converts err into the APIError a client should see.
func ToAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return api.NewTooLargeError("Request body too large")
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("Not found")
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError("Resource already exists")
	case errors.Is(err, files.ErrNotFound):
		return api.NewNotFoundError("File not found")
	case errors.Is(err, files.ErrTooLarge), errors.Is(err, document.ErrTooLarge):
		return api.NewTooLargeError(capitalize(err.Error()))
	case errors.Is(err, files.ErrUnsupportedType), errors.Is(err, document.ErrUnsupportedFormat):
		return api.NewUnsupportedMediaTypeError(capitalize(err.Error()))
	case errors.Is(err, document.ErrEmptyDocument):
		return api.NewInvalidRequestError("file", capitalize(err.Error()))
	case errors.Is(err, tasks.ErrNotFound):
		return api.NewNotFoundError("Task not found")
	case errors.Is(err, tasks.ErrFinished):
		return api.NewConflictError("Task already finished")
	case errors.Is(err, tasks.ErrQueueFull):
		return api.NewUnavailableError("Task queue is full, try again later")
	case errors.Is(err, tasks.ErrNotRunning):
		return api.NewUnavailableError("Task manager is not running")
	}
	return api.NewServerError("Internal server error")
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body", "error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
