package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/tasks"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name       string
		errType    api.ErrorType
		wantStatus int
	}{
		{"invalid_request -> 400", api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{"unauthorized -> 401", api.ErrorTypeUnauthorized, http.StatusUnauthorized},
		{"forbidden -> 403", api.ErrorTypeForbidden, http.StatusForbidden},
		{"not_found -> 404", api.ErrorTypeNotFound, http.StatusNotFound},
		{"conflict -> 409", api.ErrorTypeConflict, http.StatusConflict},
		{"too_large -> 413", api.ErrorTypeTooLarge, http.StatusRequestEntityTooLarge},
		{"unsupported_media_type -> 415", api.ErrorTypeUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"too_many_requests -> 429", api.ErrorTypeTooManyRequests, http.StatusTooManyRequests},
		{"unavailable -> 503", api.ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"server_error -> 500", api.ErrorTypeServerError, http.StatusInternalServerError},
		{"model_error -> 500", api.ErrorTypeModelError, http.StatusInternalServerError},
		{"unknown type -> 500", api.ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &api.APIError{Type: tt.errType, Message: "test"}
			got := HTTPStatusFromError(err)
			if got != tt.wantStatus {
				t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.errType, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	apiErr := api.NewInvalidRequestError("document_text", "is required")
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, apiErr, http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q, want %q", resp.Error.Type, api.ErrorTypeInvalidRequest)
	}
	if resp.Error.Param != "document_text" {
		t.Errorf("error param = %q, want %q", resp.Error.Param, "document_text")
	}
}

func TestWriteErrorResponseUnauthorizedChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, api.NewUnauthorizedError("Incorrect email or password"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q, want Bearer", got)
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType api.ErrorType
	}{
		{"api error passes through", api.NewForbiddenError("no"), api.ErrorTypeForbidden},
		{"wrapped api error", fmt.Errorf("handler: %w", api.NewConflictError("dup")), api.ErrorTypeConflict},
		{"storage not found", fmt.Errorf("get: %w", storage.ErrNotFound), api.ErrorTypeNotFound},
		{"storage conflict", storage.ErrConflict, api.ErrorTypeConflict},
		{"file not found", files.ErrNotFound, api.ErrorTypeNotFound},
		{"file too large", files.TooLargeError(1024), api.ErrorTypeTooLarge},
		{"file type", fmt.Errorf("%w: .exe", files.ErrUnsupportedType), api.ErrorTypeUnsupportedMediaType},
		{"document too large", document.ErrTooLarge, api.ErrorTypeTooLarge},
		{"document format", document.ErrUnsupportedFormat, api.ErrorTypeUnsupportedMediaType},
		{"empty document", document.ErrEmptyDocument, api.ErrorTypeInvalidRequest},
		{"body too large", &http.MaxBytesError{Limit: 10}, api.ErrorTypeTooLarge},
		{"task not found", tasks.ErrNotFound, api.ErrorTypeNotFound},
		{"task finished", tasks.ErrFinished, api.ErrorTypeConflict},
		{"queue full", tasks.ErrQueueFull, api.ErrorTypeUnavailable},
		{"manager stopped", tasks.ErrNotRunning, api.ErrorTypeUnavailable},
		{"unknown", errors.New("connection reset by peer"), api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("ToAPIError(%v).Type = %q, want %q", tt.err, got.Type, tt.wantType)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/presentations", nil)

	WriteError(rec, req, errors.New("pq: password authentication failed for user \"app\""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want 500", rec.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Message != "Internal server error" {
		t.Errorf("message = %q, want generic server error", resp.Error.Message)
	}
}
