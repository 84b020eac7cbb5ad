package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every structured environment override.
const EnvPrefix = "SLIDEWRIGHT_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SLIDEWRIGHT_CONFIG env, ./config.yaml,
//     $HOME/.config/slidewright/config.yaml)
//  3. Unprefixed compatibility variables, then SLIDEWRIGHT_* overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SLIDEWRIGHT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. $HOME/.config/slidewright/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "slidewright", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so that typos do not pass silently.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envReader collects parse failures while reading variables.
type envReader struct {
	errs []error
}

func (e *envReader) str(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) size(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}
}

// applyEnvOverrides maps environment variables to config fields. The
// unprefixed names are read first so SLIDEWRIGHT_* always wins.
func applyEnvOverrides(cfg *Config) error {
	env := &envReader{}

	// Unprefixed names.
	env.str("HOST", &cfg.Server.Host)
	env.integer("PORT", &cfg.Server.Port)
	env.boolean("DEBUG", &cfg.Server.Debug)
	env.str("LOG_LEVEL", &cfg.Logging.Level)
	env.str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	env.str("UPLOAD_DIR", &cfg.Uploads.Dir)
	env.size("MAX_UPLOAD_SIZE", &cfg.Uploads.MaxSize)
	env.str("JWT_SECRET_KEY", &cfg.Auth.SecretKey)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		if err := applyDatabaseURL(cfg, v); err != nil {
			env.errs = append(env.errs, fmt.Errorf("DATABASE_URL: %w", err))
		}
	}

	p := EnvPrefix
	env.str(p+"HOST", &cfg.Server.Host)
	env.integer(p+"PORT", &cfg.Server.Port)
	env.boolean(p+"DEBUG", &cfg.Server.Debug)
	env.duration(p+"SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	env.str(p+"LLM_PROVIDER", &cfg.LLM.Provider)
	env.str(p+"LLM_BASE_URL", &cfg.LLM.BaseURL)
	env.str(p+"LLM_API_KEY", &cfg.LLM.APIKey)
	env.str(p+"LLM_API_KEY_FILE", &cfg.LLM.APIKeyFile)
	env.str(p+"LLM_MODEL", &cfg.LLM.Model)
	env.duration(p+"LLM_TIMEOUT", &cfg.LLM.Timeout)
	env.integer(p+"LLM_MAX_RETRIES", &cfg.LLM.MaxRetries)
	env.integer(p+"LLM_CONTENT_CONCURRENCY", &cfg.LLM.ContentConcurrency)

	env.str(p+"STORAGE_TYPE", &cfg.Storage.Type)
	env.str(p+"SQLITE_PATH", &cfg.Storage.SQLite.Path)
	env.str(p+"POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	env.str(p+"POSTGRES_DSN_FILE", &cfg.Storage.Postgres.DSNFile)
	if v := os.Getenv(p + "DATABASE_URL"); v != "" {
		if err := applyDatabaseURL(cfg, v); err != nil {
			env.errs = append(env.errs, fmt.Errorf("%sDATABASE_URL: %w", p, err))
		}
	}

	env.str(p+"SECRET_KEY", &cfg.Auth.SecretKey)
	env.str(p+"SECRET_KEY_FILE", &cfg.Auth.SecretKeyFile)
	env.duration(p+"TOKEN_TTL", &cfg.Auth.TokenTTL)
	env.integer(p+"RATE_LIMIT", &cfg.Auth.RateLimit.RequestsPerMinute)
	if v := os.Getenv(p + "API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			env.errs = append(env.errs, fmt.Errorf("%sAPI_KEYS: %w", p, err))
		} else {
			cfg.Auth.APIKeys = keys
		}
	}

	env.str(p+"UPLOAD_DIR", &cfg.Uploads.Dir)
	env.size(p+"MAX_UPLOAD_SIZE", &cfg.Uploads.MaxSize)

	env.str(p+"CACHE_MODE", &cfg.Cache.Mode)
	env.str(p+"CACHE_DIR", &cfg.Cache.Dir)
	env.duration(p+"CACHE_TTL", &cfg.Cache.TTL)

	env.integer(p+"TASK_WORKERS", &cfg.Tasks.Workers)
	env.integer(p+"TASK_QUEUE_SIZE", &cfg.Tasks.QueueSize)

	env.str(p+"LOG_LEVEL", &cfg.Logging.Level)
	env.str(p+"LOG_FORMAT", &cfg.Logging.Format)
	env.str(p+"LOG_DEBUG", &cfg.Logging.Debug)

	return errors.Join(env.errs...)
}

// applyDatabaseURL selects the storage backend from a database URL:
// postgres:// and postgresql:// select postgres, sqlite:///path selects
// sqlite with the given path.
func applyDatabaseURL(cfg *Config, raw string) error {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		cfg.Storage.Type = "postgres"
		cfg.Storage.Postgres.DSN = raw
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return errors.New("sqlite URL has no path")
		}
		cfg.Storage.Type = "sqlite"
		cfg.Storage.SQLite.Path = path
	default:
		return fmt.Errorf("unsupported database URL scheme in %q", redactURL(raw))
	}
	return nil
}

// redactURL drops everything after the scheme so credentials stay out of
// error messages.
func redactURL(raw string) string {
	if scheme, _, ok := strings.Cut(raw, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// llm.api_key_file -> llm.api_key
	if cfg.LLM.APIKeyFile != "" && cfg.LLM.APIKey == "" {
		val, err := readSecretFile(cfg.LLM.APIKeyFile)
		if err != nil {
			return fmt.Errorf("llm.api_key_file: %w", err)
		}
		cfg.LLM.APIKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.secret_key_file -> auth.secret_key
	if cfg.Auth.SecretKeyFile != "" && cfg.Auth.SecretKey == "" {
		val, err := readSecretFile(cfg.Auth.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("auth.secret_key_file: %w", err)
		}
		cfg.Auth.SecretKey = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
