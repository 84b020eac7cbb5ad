package engine

// Config holds configuration for the generation engine.
type Config struct {
	// Model is used by both agents when the request does not name one.
	// Empty defers to the provider default.
	Model string

	// ContentConcurrency is the number of slides generated at once.
	// Zero or negative means one at a time.
	ContentConcurrency int

	// KeyConfigured reports whether an API key was supplied for the
	// provider. Providers that do not need a key ignore it.
	KeyConfigured bool
}

// concurrency returns the effective slide concurrency, defaulting to 1.
func (c Config) concurrency() int {
	if c.ContentConcurrency <= 0 {
		return 1
	}
	return c.ContentConcurrency
}
