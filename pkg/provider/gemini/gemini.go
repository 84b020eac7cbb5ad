// Package gemini implements provider.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

// DefaultModel is used when neither the config nor the request names one.
const DefaultModel = "gemini-2.0-flash"

// Config holds configuration for the Gemini provider.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API endpoint. Used by tests and proxies.
	BaseURL string

	// Timeout for individual requests. Zero uses the SDK default.
	Timeout time.Duration
}

// Provider calls the Gemini API through genai.Client.
type Provider struct {
	client *genai.Client
	model  string
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Gemini provider. An API key is required.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPOptions.Timeout = genai.Ptr(cfg.Timeout)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Provider{client: client, model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		StructuredOutput:   true,
		SystemInstructions: true,
		RequiresAPIKey:     true,
		DefaultModel:       p.model,
	}
}

// Complete sends one GenerateContent call. Structured requests ask for
// application/json with the request schema as the response JSON schema.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	gc := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		gc.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.MaxTokens != nil {
		gc.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if req.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseJsonSchema = req.Schema
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), gc)
	if err != nil {
		return nil, mapError(ctx, err)
	}

	out := &provider.Response{
		Content: resp.Text(),
		Model:   model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = api.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if out.Content == "" {
		if out.FinishReason != "" && out.FinishReason != string(genai.FinishReasonStop) {
			return nil, api.NewModelError(fmt.Sprintf("backend stopped without content (finish reason %s)", out.FinishReason))
		}
		return nil, api.NewModelError("backend returned empty content")
	}
	return out, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error { return nil }

func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.StatusError(apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return provider.StatusError(apiErrPtr.Code, apiErrPtr.Message)
	}
	return provider.NetworkError(err)
}
