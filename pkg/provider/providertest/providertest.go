// Package providertest offers a scripted provider.Provider for tests of
// the agents, the engine and the HTTP handlers.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

// Provider answers Complete calls through Fn and records every request.
type Provider struct {
	ProviderName string
	Caps         provider.Capabilities

	// Fn produces the reply. When nil, Complete returns an empty JSON object.
	Fn func(ctx context.Context, req *provider.Request) (*provider.Response, error)

	mu       sync.Mutex
	requests []provider.Request
	closed   bool
}

var _ provider.Provider = (*Provider)(nil)

// New returns a Provider with structured output and system instructions enabled.
func New(fn func(ctx context.Context, req *provider.Request) (*provider.Response, error)) *Provider {
	return &Provider{
		ProviderName: "fake",
		Caps: provider.Capabilities{
			StructuredOutput:   true,
			SystemInstructions: true,
			DefaultModel:       "fake-model",
		},
		Fn: fn,
	}
}

// Reply returns a Fn that always answers with content and the given usage.
func Reply(content string, usage api.Usage) func(context.Context, *provider.Request) (*provider.Response, error) {
	return func(context.Context, *provider.Request) (*provider.Response, error) {
		return &provider.Response{Content: content, Model: "fake-model", Usage: usage}, nil
	}
}

var slidePromptRe = regexp.MustCompile(`slide (\d+): '([^']*)'`)

// Pipeline returns a Fn that plays both agents: planning requests get a
// plan titled "Test Deck" with n slides, content requests get a markdown
// slide echoing the number and title from the prompt. Every reply reports
// usage.
func Pipeline(n int, usage api.Usage) func(context.Context, *provider.Request) (*provider.Response, error) {
	return func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		var v any
		switch req.SchemaName {
		case "presentation_plan":
			plan := api.PresentationPlan{Title: "Test Deck", Theme: "default"}
			for i := 1; i <= n; i++ {
				plan.Slides = append(plan.Slides, api.SlideStructure{
					SlideNumber:   i,
					Title:         fmt.Sprintf("Slide %d", i),
					ContentTokens: []string{"point"},
				})
			}
			v = plan
		case "slide_content":
			m := slidePromptRe.FindStringSubmatch(req.Prompt)
			if m == nil {
				return nil, fmt.Errorf("providertest: no slide in prompt")
			}
			num, _ := strconv.Atoi(m[1])
			v = api.SlideContent{
				SlideNumber: num,
				Title:       m[2],
				Content:     "- first point\n- second point",
				Notes:       "Notes for " + m[2],
			}
		default:
			return nil, fmt.Errorf("providertest: unexpected schema %q", req.SchemaName)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return &provider.Response{Content: string(data), Model: "fake-model", Usage: usage}, nil
	}
}

func (p *Provider) Name() string                         { return p.ProviderName }
func (p *Provider) Capabilities() provider.Capabilities { return p.Caps }

func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Fn == nil {
		return &provider.Response{Content: "{}", Model: "fake-model"}, nil
	}
	return p.Fn(ctx, req)
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Requests returns a copy of the requests seen so far.
func (p *Provider) Requests() []provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.Request(nil), p.requests...)
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
