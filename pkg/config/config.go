// Package config provides unified configuration for the slidewright server
// and CLI.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SLIDEWRIGHT_ prefix)
//  4. Compatibility mapping for the unprefixed variable names
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all configuration for slidewright.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	Cache         CacheConfig         `yaml:"cache"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // default: "0.0.0.0"
	Port            int           `yaml:"port"`             // default: 8000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (SSE and sync generation run long)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
	Debug           bool          `yaml:"debug"`
}

// LLMConfig selects and configures the model backend.
type LLMConfig struct {
	Provider           string        `yaml:"provider"`     // "openai" or "gemini", default: "openai"
	BaseURL            string        `yaml:"base_url"`     // openai only; default: https://api.openai.com
	APIKey             string        `yaml:"api_key"`      // optional for self-hosted backends
	APIKeyFile         string        `yaml:"api_key_file"` // _file variant for api_key
	Model              string        `yaml:"model"`        // default: gpt-4o (openai), gemini-2.0-flash (gemini)
	Timeout            time.Duration `yaml:"timeout"`      // default: 120s
	MaxRetries         int           `yaml:"max_retries"`  // default: 2
	ContentConcurrency int           `yaml:"content_concurrency"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory", "sqlite" or "postgres", default: "sqlite"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "data/slidewright.db"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	DSNFile  string `yaml:"dsn_file"`  // _file variant for dsn
	MaxConns int32  `yaml:"max_conns"` // default: 15
	Migrate  bool   `yaml:"migrate"`   // apply migrations on start, default: true
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	SecretKey     string          `yaml:"secret_key"`
	SecretKeyFile string          `yaml:"secret_key_file"` // _file variant for secret_key
	TokenTTL      time.Duration   `yaml:"token_ttl"`       // default: 30m
	Issuer        string          `yaml:"issuer"`
	APIKeys       []APIKeyConfig  `yaml:"api_keys"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig maps a static key to a user.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	UserID      int64  `yaml:"user_id" json:"user_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// RateLimitConfig holds per-user request limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // 0 disables the limit
}

// UploadsConfig holds upload storage settings.
type UploadsConfig struct {
	Dir     string `yaml:"dir"`      // default: "uploads"
	MaxSize int64  `yaml:"max_size"` // bytes, default: 10 MiB
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Mode          string        `yaml:"mode"` // "memory", "file", "both" or "off", default: "both"
	Dir           string        `yaml:"dir"`  // default: "cache"
	TTL           time.Duration `yaml:"ttl"`  // default: 1h
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// TasksConfig holds background generation settings.
type TasksConfig struct {
	Workers       int           `yaml:"workers"`    // default: 5
	QueueSize     int           `yaml:"queue_size"` // default: 100
	Retention     time.Duration `yaml:"retention"`  // default: 1h
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn", "error"; default: "info"
	Format string `yaml:"format"` // "json", "text" or "" to pick by terminal

	// Debug enables debug categories, e.g. "providers,cache" or "all".
	Debug string `yaml:"debug"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Default model names per provider.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider:           "openai",
			Timeout:            120 * time.Second,
			MaxRetries:         2,
			ContentConcurrency: 1,
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "data/slidewright.db"},
			Postgres: PostgresConfig{
				MaxConns: 15,
				Migrate:  true,
			},
		},
		Auth: AuthConfig{
			TokenTTL: 30 * time.Minute,
			Issuer:   "slidewright",
		},
		Uploads: UploadsConfig{
			Dir:     "uploads",
			MaxSize: 10 * 1024 * 1024,
		},
		Cache: CacheConfig{
			Mode:          "both",
			Dir:           "cache",
			TTL:           time.Hour,
			PurgeInterval: 10 * time.Minute,
		},
		Tasks: TasksConfig{
			Workers:       5,
			QueueSize:     100,
			Retention:     time.Hour,
			PurgeInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// EffectiveModel returns the configured model or the provider's default.
func (c *LLMConfig) EffectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == "gemini" {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
