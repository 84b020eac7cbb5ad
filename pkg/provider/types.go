package provider

import (
	"github.com/rhuss/slidewright/pkg/api"
)

// Capabilities declares what the backend supports. The agents use it to
// validate requests before any network call is made.
type Capabilities struct {
	// StructuredOutput indicates the backend accepts a JSON schema for the reply.
	StructuredOutput bool

	// SystemInstructions indicates the backend accepts a separate system prompt.
	SystemInstructions bool

	// RequiresAPIKey is true for hosted backends that reject anonymous calls.
	RequiresAPIKey bool

	// DefaultModel is used when a request leaves Model empty.
	DefaultModel string
}

// Request is a single completion request.
type Request struct {
	Model        string
	Instructions string
	Prompt       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int

	// SchemaName and Schema describe the expected JSON reply. A nil Schema
	// asks for free-form text.
	SchemaName string
	Schema     map[string]any
}

// Response is the backend's reply.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        api.Usage
}
