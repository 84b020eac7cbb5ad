package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/rhuss/slidewright/pkg/auth"
	"github.com/rhuss/slidewright/pkg/auth/apikey"
	"github.com/rhuss/slidewright/pkg/auth/jwt"
	"github.com/rhuss/slidewright/pkg/cache"
	"github.com/rhuss/slidewright/pkg/config"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/provider"
	"github.com/rhuss/slidewright/pkg/provider/gemini"
	"github.com/rhuss/slidewright/pkg/provider/openaicompat"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/storage/memory"
	"github.com/rhuss/slidewright/pkg/storage/postgres"
	"github.com/rhuss/slidewright/pkg/storage/sqlite"
	"github.com/rhuss/slidewright/pkg/transport"
)

// generator bundles the generation pipeline and what must be closed with it.
type generator struct {
	provider provider.Provider
	cache    *cache.Cache
	service  *engine.Service
}

func (g *generator) Close() error {
	if g.cache != nil {
		g.cache.Close()
	}
	return g.provider.Close()
}

func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*generator, error) {
	p, err := buildProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	c, err := buildCache(cfg.Cache, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	e, err := engine.New(p, engine.Config{
		Model:              cfg.LLM.EffectiveModel(),
		ContentConcurrency: cfg.LLM.ContentConcurrency,
		KeyConfigured:      cfg.LLM.APIKey != "",
	})
	if err != nil {
		if c != nil {
			c.Close()
		}
		_ = p.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	if !e.Ready() {
		logger.Warn("no LLM API key configured; generation endpoints will answer 503",
			"provider", cfg.LLM.Provider)
	}

	svc := engine.NewService(e, c, engine.ServiceConfig{
		CacheTTL:    cfg.Cache.TTL,
		MaxFileSize: cfg.Uploads.MaxSize,
	})
	return &generator{provider: p, cache: c, service: svc}, nil
}

// buildProvider creates the configured LLM backend wrapped with retries.
func buildProvider(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	switch {
	case cfg.Provider == "gemini" && cfg.APIKey == "":
		// The client cannot be built without a key. Keep serving so that
		// generation endpoints report the missing key.
		p = unconfigured{name: "gemini", model: cfg.EffectiveModel()}
	case cfg.Provider == "gemini":
		p, err = gemini.New(ctx, gemini.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.EffectiveModel(),
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	default:
		p, err = openaicompat.New(openaicompat.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.EffectiveModel(),
			Timeout: cfg.Timeout,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", cfg.Provider, err)
	}
	logger.Info("llm provider configured", "provider", cfg.Provider, "model", cfg.EffectiveModel())
	return provider.WithRetry(p, provider.RetryConfig{MaxRetries: cfg.MaxRetries, Logger: logger}), nil
}

// buildCache returns nil when caching is off.
func buildCache(cfg config.CacheConfig, logger *slog.Logger) (*cache.Cache, error) {
	if cfg.Mode == "off" {
		return nil, nil
	}
	c, err := cache.New(cache.Config{
		Mode:          cache.Mode(cfg.Mode),
		Dir:           cfg.Dir,
		TTL:           cfg.TTL,
		PurgeInterval: cfg.PurgeInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return c, nil
}

// openStore opens the configured backend. SQLite and Postgres (when
// storage.postgres.migrate is set) apply migrations on open.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		logger.Warn("using in-memory storage; users and presentations are lost on restart")
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("storage configured", "type", "sqlite", "path", cfg.SQLite.Path)
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.Migrate,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Info("storage configured", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// buildAuth assembles the authenticator chain: JWT access tokens first,
// then static API keys. Unauthenticated requests outside the bypass list
// are rejected.
func buildAuth(cfg config.AuthConfig, users auth.UserLookup, logger *slog.Logger) (transport.Middleware, *jwt.Issuer, error) {
	secret, err := signingSecret(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	jwtCfg := jwt.Config{Secret: secret, Issuer: cfg.Issuer, TTL: cfg.TokenTTL}
	issuer, err := jwt.NewIssuer(jwtCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating token issuer: %w", err)
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{jwt.New(jwtCfg)},
		DefaultDecision: auth.No,
	}
	if len(cfg.APIKeys) > 0 {
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, UserID: k.UserID, ServiceTier: k.ServiceTier})
		}
		chain.Authenticators = append(chain.Authenticators, apikey.New(entries))
		logger.Info("api key authentication enabled", "keys", len(entries))
	}

	var limiter auth.RateLimiter
	if rpm := cfg.RateLimit.RequestsPerMinute; rpm > 0 {
		limiter = auth.NewInProcessLimiter(nil, rpm)
		logger.Info("rate limiting enabled", "requests_per_minute", rpm)
	}

	return auth.Middleware(chain, users, limiter, auth.DefaultBypassEndpoints), issuer, nil
}

// signingSecret returns the configured secret or, when none is set, a
// random one valid for this process only.
func signingSecret(cfg config.AuthConfig, logger *slog.Logger) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating signing secret: %w", err)
	}
	logger.Warn("auth.secret_key is not set; using an ephemeral secret, tokens will not survive a restart")
	return secret, nil
}

// unconfigured stands in for a hosted provider that has no API key.
type unconfigured struct {
	name  string
	model string
}

func (u unconfigured) Name() string { return u.name }

func (u unconfigured) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAPIKey: true, DefaultModel: u.model}
}

func (u unconfigured) Complete(context.Context, *provider.Request) (*provider.Response, error) {
	return nil, fmt.Errorf("%s: API key not configured", u.name)
}

func (u unconfigured) Close() error { return nil }
