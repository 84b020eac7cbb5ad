package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/auth/jwt"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/observability"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/tasks"
	"github.com/rhuss/slidewright/pkg/transport"
)

// Config holds configuration for the HTTP adapter.
type Config struct {
	Name    string
	Version string

	// MaxBodySize bounds JSON request bodies.
	MaxBodySize int64

	// PollInterval is the heartbeat of progress streams.
	PollInterval time.Duration

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "slidewright",
		Version:      "dev",
		MaxBodySize:  16 << 20, // 16 MB
		PollInterval: time.Second,
		MetricsPath:  "/metrics",
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Deps are the services behind the routes. Service and Tasks are
// required; the rest disable their routes when nil.
type Deps struct {
	Service *engine.Service
	Tasks   *tasks.Manager
	Store   storage.Store
	Files   *files.Store
	Issuer  *jwt.Issuer

	// Auth authenticates requests outside the bypass list and stores the
	// user in the context.
	Auth transport.Middleware

	// MCP is mounted at /mcp.
	MCP http.Handler
}

// Adapter serves the slidewright REST API over HTTP.
type Adapter struct {
	deps    Deps
	config  Config
	mux     *http.ServeMux
	streams *transport.InFlightRegistry
}

// NewAdapter creates an HTTP adapter and registers all routes.
func NewAdapter(deps Deps, cfg Config) (*Adapter, error) {
	if deps.Service == nil {
		return nil, errors.New("http adapter: presentation service is required")
	}
	if deps.Tasks == nil {
		return nil, errors.New("http adapter: task manager is required")
	}
	cfg.defaults()

	a := &Adapter{
		deps:    deps,
		config:  cfg,
		mux:     http.NewServeMux(),
		streams: transport.NewInFlightRegistry(),
	}

	a.mux.HandleFunc("GET /{$}", a.handleRoot)
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("GET /healthz", a.handleLiveness)
	a.mux.HandleFunc("GET /readyz", a.handleReadiness)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	a.mux.HandleFunc("POST /api/generate", a.handleGenerate)
	a.mux.HandleFunc("POST /api/generate-async", a.handleGenerateAsync)
	a.mux.HandleFunc("POST /api/generate-from-file-async", a.handleGenerateFromFileAsync)
	a.mux.HandleFunc("GET /api/generation/{id}/status", a.handleTaskStatus)
	a.mux.HandleFunc("GET /api/generation/{id}/result", a.handleTaskResult)
	a.mux.HandleFunc("GET /api/generation/{id}/events", a.handleTaskEvents)
	a.mux.HandleFunc("GET /api/generation/{id}/ws", a.handleTaskWebSocket)
	a.mux.HandleFunc("DELETE /api/generation/{id}", a.handleCancelTask)
	a.mux.HandleFunc("GET /api/generations", a.handleListTasks)

	a.mux.HandleFunc("POST /api/users/register", a.handleRegister)
	a.mux.HandleFunc("POST /api/users/login", a.handleLogin)
	a.mux.HandleFunc("GET /api/users/me", a.handleGetMe)
	a.mux.HandleFunc("PUT /api/users/me", a.handleUpdateMe)

	a.mux.HandleFunc("POST /api/presentations", a.handleCreatePresentation)
	a.mux.HandleFunc("GET /api/presentations", a.handleListPresentations)
	a.mux.HandleFunc("GET /api/presentations/{id}", a.handleGetPresentation)
	a.mux.HandleFunc("PUT /api/presentations/{id}", a.handleUpdatePresentation)
	a.mux.HandleFunc("DELETE /api/presentations/{id}", a.handleDeletePresentation)
	a.mux.HandleFunc("GET /api/presentations/{id}/export", a.handleExportPresentation)

	a.mux.HandleFunc("POST /api/upload", a.handleUpload)
	a.mux.HandleFunc("GET /api/upload", a.handleListUploads)
	a.mux.HandleFunc("DELETE /api/upload/{file_id}", a.handleDeleteUpload)
	a.mux.HandleFunc("POST /api/upload/{file_id}/generate", a.handleGenerateFromUpload)

	if deps.MCP != nil {
		a.mux.Handle("/mcp", deps.MCP)
		a.mux.Handle("/mcp/", deps.MCP)
	}

	return a, nil
}

// Handler returns the http.Handler for this adapter with the default
// middleware applied: recovery, request ID, access logging, authentication
// and metrics. Metrics sit next to the mux so that route patterns are
// available as labels.
func (a *Adapter) Handler() http.Handler {
	mws := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(a.config.Logger),
	}
	if a.deps.Auth != nil {
		mws = append(mws, a.deps.Auth)
	}
	mws = append(mws, observability.MetricsMiddleware)
	return transport.Chain(mws...)(a.mux)
}

// CloseStreams ends all open progress streams. Called on shutdown.
func (a *Adapter) CloseStreams() int {
	return a.streams.CancelAll()
}

type rootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (a *Adapter) handleRoot(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, rootResponse{
		Name:    a.config.Name,
		Version: a.config.Version,
		Status:  "ok",
	})
}

type taskManagerHealth struct {
	Running     bool `json:"running"`
	ActiveTasks int  `json:"active_tasks"`
	Workers     int  `json:"workers"`
}

type healthResponse struct {
	Status           string            `json:"status"`
	APIKeyConfigured bool              `json:"api_key_configured"`
	Database         string            `json:"database"`
	TaskManager      taskManagerHealth `json:"task_manager"`
}

// handleHealth reports component status. It always answers 200; the
// status field turns "degraded" when a component is unhealthy.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "ok",
		APIKeyConfigured: a.deps.Service.Ready(),
		Database:         "not_configured",
		TaskManager: taskManagerHealth{
			Running:     a.deps.Tasks.Running(),
			ActiveTasks: len(a.deps.Tasks.Active()),
			Workers:     a.deps.Tasks.Workers(),
		},
	}
	if a.deps.Store != nil {
		if err := a.pingStore(r.Context()); err != nil {
			resp.Database = "disconnected"
			resp.Status = "degraded"
		} else {
			resp.Database = "connected"
		}
	}
	if !resp.TaskManager.Running {
		resp.Status = "degraded"
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

func (a *Adapter) handleLiveness(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store != nil {
		if err := a.pingStore(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			transport.WriteAPIError(w, api.NewUnavailableError("database unavailable"))
			return
		}
	}
	if !a.deps.Tasks.Running() {
		transport.WriteAPIError(w, api.NewUnavailableError("task manager not running"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *Adapter) pingStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.deps.Store.HealthCheck(ctx)
}

var errEmptyBody = api.NewInvalidRequestError("body", "request body is empty")

// decodeJSON reads a JSON body into v. The body is bounded by MaxBodySize.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return api.NewUnsupportedMediaTypeError("Content-Type must be application/json")
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return api.NewTooLargeError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
		case errors.Is(err, io.EOF):
			return errEmptyBody
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be absent.
func (a *Adapter) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := a.decodeJSON(w, r, v); err != nil && err != errEmptyBody {
		return err
	}
	return nil
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, api.NewInvalidRequestError(name, fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, api.NewInvalidRequestError(name, name+" must be an integer")
	}
	return n, nil
}
