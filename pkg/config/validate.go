package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// minSecretLength is the shortest accepted token signing secret.
const minSecretLength = 16

// Validate checks the configuration for required fields and valid values.
// All violations are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		add("server timeouts must not be negative")
	}

	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		add("llm.provider must be \"openai\" or \"gemini\", got %q", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
		}
	}
	if c.LLM.MaxRetries < 0 {
		add("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.ContentConcurrency < 0 {
		add("llm.content_concurrency must not be negative, got %d", c.LLM.ContentConcurrency)
	}
	if c.LLM.Timeout < 0 {
		add("llm.timeout must not be negative")
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			add("storage.sqlite.path is required when storage.type is \"sqlite\"")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			add("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\"")
		}
	default:
		add("storage.type must be \"memory\", \"sqlite\" or \"postgres\", got %q", c.Storage.Type)
	}

	if c.Auth.SecretKey != "" && len(c.Auth.SecretKey) < minSecretLength {
		add("auth.secret_key must be at least %d bytes", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl must be positive")
	}
	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		add("auth.rate_limit.requests_per_minute must not be negative")
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" && k.KeyFile == "" {
			add("auth.api_keys[%d]: key or key_file is required", i)
		}
		if k.UserID <= 0 {
			add("auth.api_keys[%d]: user_id must be positive", i)
		}
	}

	if c.Uploads.Dir == "" {
		add("uploads.dir is required")
	}
	if c.Uploads.MaxSize <= 0 {
		add("uploads.max_size must be positive, got %d", c.Uploads.MaxSize)
	}

	switch c.Cache.Mode {
	case "off", "memory":
	case "file", "both":
		if c.Cache.Dir == "" {
			add("cache.dir is required when cache.mode is %q", c.Cache.Mode)
		}
	default:
		add("cache.mode must be \"memory\", \"file\", \"both\" or \"off\", got %q", c.Cache.Mode)
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl must not be negative")
	}

	if c.Tasks.Workers <= 0 {
		add("tasks.workers must be positive, got %d", c.Tasks.Workers)
	}
	if c.Tasks.QueueSize <= 0 {
		add("tasks.queue_size must be positive, got %d", c.Tasks.QueueSize)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		add("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		add("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
