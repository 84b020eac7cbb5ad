package openaicompat

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rhuss/slidewright/pkg/provider"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// a provider.Error. It attempts to parse the response body as a
// ChatErrorResponse to extract a descriptive message.
func MapHTTPError(resp *http.Response) *provider.Error {
	return provider.StatusError(resp.StatusCode, ExtractErrorMessage(resp.Body))
}

// MapNetworkError converts a network-level error (connection refused, timeout,
// DNS resolution failure) into a retryable provider.Error.
func MapNetworkError(err error) *provider.Error {
	return provider.NetworkError(err)
}

// ExtractErrorMessage tries to parse the response body as a ChatErrorResponse
// and returns the error message if found.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
