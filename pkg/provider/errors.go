package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rhuss/slidewright/pkg/api"
)

// Error is a backend failure. It unwraps to the client-facing APIError and
// records whether repeating the call may succeed.
type Error struct {
	Err        *api.APIError
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend HTTP %d: %s", e.StatusCode, e.Err.Message)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient backend failure.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable
}

// StatusError maps a backend HTTP status and message onto an Error.
// 429 and 5xx responses are retryable.
func StatusError(status int, message string) *Error {
	e := &Error{StatusCode: status}

	switch {
	case status == http.StatusBadRequest:
		if message == "" {
			message = "invalid request to backend"
		}
		e.Err = api.NewInvalidRequestError("", message)

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		e.Err = api.NewModelError(message)

	case status == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
		e.Err = api.NewNotFoundError(message)

	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		e.Err = api.NewTooManyRequestsError(message)
		e.Retryable = true

	case status >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", status)
		}
		e.Err = api.NewModelError(message)
		e.Retryable = true

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", status)
		}
		e.Err = api.NewModelError(message)
	}

	return e
}

// NetworkError maps a connection-level failure (refused, reset, timeout,
// DNS) onto a retryable model error.
func NetworkError(err error) *Error {
	return &Error{
		Err:       api.NewModelError(fmt.Sprintf("backend connection error: %s", err.Error())),
		Retryable: true,
	}
}
