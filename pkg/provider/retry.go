package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig bounds the retries applied by WithRetry.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts after the first call.
	MaxRetries int

	// Delay is the initial backoff. Defaults to 500ms.
	Delay time.Duration

	// MaxDelay caps the exponential backoff. Defaults to 10s.
	MaxDelay time.Duration

	Logger *slog.Logger
}

func (c *RetryConfig) defaults() {
	if c.Delay <= 0 {
		c.Delay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// WithRetry wraps p so that transient failures (rate limits, 5xx, network
// errors) are retried with exponential backoff. With MaxRetries of zero p
// is returned unchanged.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxRetries <= 0 {
		return p
	}
	cfg.defaults()
	return &retrying{Provider: p, cfg: cfg}
}

type retrying struct {
	Provider
	cfg RetryConfig
}

func (r *retrying) Complete(ctx context.Context, req *Request) (*Response, error) {
	return retry.DoWithData(
		func() (*Response, error) {
			return r.Provider.Complete(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.cfg.MaxRetries)+1),
		retry.Delay(r.cfg.Delay),
		retry.MaxDelay(r.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			r.cfg.Logger.Warn("retrying LLM request",
				"provider", r.Provider.Name(),
				"attempt", n+1,
				"error", err,
			)
		}),
	)
}
