package provider

import (
	"context"
)

// Provider abstracts an LLM inference backend that can return a single
// structured completion.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Complete performs a single non-streaming completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
