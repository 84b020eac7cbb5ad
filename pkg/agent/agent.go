package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/observability"
	"github.com/rhuss/slidewright/pkg/provider"
)

const (
	// DefaultModel is the model agents ask for when none is configured.
	DefaultModel = "gpt-4o"

	// DefaultTopP is the nucleus sampling value shared by all agents.
	DefaultTopP = 0.95
)

// Agent is a configured call to an LLM with a fixed output shape.
type Agent struct {
	Name         string
	Instructions string

	// Model overrides the provider's default model when set.
	Model       string
	Temperature float64
	TopP        float64

	SchemaName string
	Schema     map[string]any
}

// State is the generation state shared between agents and tools. It is
// implemented by the engine's generation context. A nil State is allowed
// and disables all recording.
type State interface {
	RecordTokenUsage(u api.Usage)
	RecordAPICall()
	RecordTool(name string, chars int)

	// Increment adds one to the shared counter key and returns the new value.
	Increment(key string) int

	DocumentText() string
	DocumentStatistics() document.Stats
}

// Run sends prompt to p on behalf of a and decodes the JSON reply into T.
// Markdown code fences around the reply are tolerated. Token usage and the
// API call are recorded in st.
func Run[T any](ctx context.Context, a *Agent, p provider.Provider, prompt string, st State) (*T, error) {
	req := &provider.Request{
		Model:        a.Model,
		Instructions: a.Instructions,
		Prompt:       prompt,
		Temperature:  &a.Temperature,
		TopP:         &a.TopP,
		SchemaName:   a.SchemaName,
		Schema:       a.Schema,
	}
	if apiErr := provider.ValidateRequest(p.Capabilities(), req); apiErr != nil {
		return nil, apiErr
	}

	slog.Debug("running agent", "agent", a.Name, "provider", p.Name(), "prompt_chars", len(prompt))

	start := time.Now()
	resp, err := p.Complete(ctx, req)
	observability.LLMRequestDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if st != nil {
		st.RecordAPICall()
	}
	if err != nil {
		observability.LLMRequestsTotal.WithLabelValues(p.Name(), a.Name, "error").Inc()
		return nil, err
	}
	observability.LLMRequestsTotal.WithLabelValues(p.Name(), a.Name, "success").Inc()
	observability.LLMTokensTotal.WithLabelValues(p.Name(), "prompt").Add(float64(resp.Usage.PromptTokens))
	observability.LLMTokensTotal.WithLabelValues(p.Name(), "completion").Add(float64(resp.Usage.CompletionTokens))

	if st != nil {
		st.RecordTokenUsage(resp.Usage)
	}

	var out T
	if err := json.Unmarshal([]byte(StripFences(resp.Content)), &out); err != nil {
		return nil, api.NewModelError(fmt.Sprintf("%s returned invalid JSON: %s", a.Name, err.Error()))
	}

	slog.Debug("agent completed", "agent", a.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return &out, nil
}

// StripFences removes a surrounding ```json ... ``` block if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
