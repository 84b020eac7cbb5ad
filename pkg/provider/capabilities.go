package provider

import (
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
)

// ValidateRequest checks whether req is compatible with the provider's
// declared capabilities and carries sane sampling parameters. Returns an
// APIError identifying the offending field, or nil.
func ValidateRequest(caps Capabilities, req *Request) *api.APIError {
	if strings.TrimSpace(req.Prompt) == "" {
		return api.NewInvalidRequestError("prompt", "prompt must not be empty")
	}

	if req.Model == "" && caps.DefaultModel == "" {
		return api.NewInvalidRequestError("model", "no model configured")
	}

	if req.Schema != nil && !caps.StructuredOutput {
		return api.NewInvalidRequestError("response_format",
			"the configured provider does not support structured output")
	}

	if req.Schema != nil && req.SchemaName == "" {
		return api.NewInvalidRequestError("response_format", "schema name is required")
	}

	if req.Instructions != "" && !caps.SystemInstructions {
		return api.NewInvalidRequestError("instructions",
			"the configured provider does not support system instructions")
	}

	if t := req.Temperature; t != nil && (*t < 0 || *t > 2) {
		return api.NewInvalidRequestError("temperature", "temperature must be between 0 and 2")
	}

	if p := req.TopP; p != nil && (*p < 0 || *p > 1) {
		return api.NewInvalidRequestError("top_p", "top_p must be between 0 and 1")
	}

	if m := req.MaxTokens; m != nil && *m <= 0 {
		return api.NewInvalidRequestError("max_tokens", "max_tokens must be positive")
	}

	return nil
}
