package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/debug"
	"github.com/rhuss/slidewright/pkg/provider"
)

// DefaultBaseURL is the hosted OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com"

// Config holds configuration for an OpenAI-compatible backend.
type Config struct {
	// Name is reported by Provider.Name. Defaults to "openai".
	Name string

	// BaseURL is the server URL without the /v1 suffix. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Model is used when a request leaves Model empty.
	Model string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration
}

// Client performs requests against an OpenAI-compatible Chat Completions
// backend and implements provider.Provider.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// Ensure Client implements provider.Provider at compile time.
var _ provider.Provider = (*Client)(nil)

// New creates a Client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("openaicompat: base URL %q must use http or https", cfg.BaseURL)
	}

	// Normalize: remove trailing slash and a redundant /v1 suffix.
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")

	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.cfg.Name }

// Capabilities returns what this provider supports.
func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		StructuredOutput:   true,
		SystemInstructions: true,
		RequiresAPIKey:     c.cfg.BaseURL == DefaultBaseURL,
		DefaultModel:       c.cfg.Model,
	}
}

// Complete performs non-streaming inference against the Chat Completions endpoint.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	reqCopy := *req
	if reqCopy.Model == "" {
		reqCopy.Model = c.cfg.Model
	}

	chatReq := TranslateToChat(&reqCopy)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.cfg.BaseURL + "/v1/chat/completions"
	debug.Log("providers", "chat completion request",
		"provider", c.cfg.Name, "url", url, "model", chatReq.Model, "bytes", len(body))
	debug.Raw("providers", string(body))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The caller gave up; report that rather than a backend failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewModelError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	resp, err := TranslateResponse(&chatResp)
	if err != nil {
		return nil, err
	}
	debug.Log("providers", "chat completion response",
		"provider", c.cfg.Name, "model", chatResp.Model, "total_tokens", resp.Usage.TotalTokens)
	if debug.TraceIsEnabled("providers") {
		debug.Trace("providers", "chat completion content", "content", debug.Truncate(resp.Content, 2000))
	}
	if resp.Model == "" {
		resp.Model = reqCopy.Model
	}
	return resp, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
