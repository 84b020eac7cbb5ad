package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/slidewright/pkg/agent"
	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/debug"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/extract"
)

// Tool names.
const (
	ToolExtractKeyPoints     = agent.ToolExtractKeyPoints
	ToolExtractContent       = "extract_content"
	ToolAnalyzeDocument      = "analyze_document"
	ToolPlanPresentation     = "plan_presentation"
	ToolGeneratePresentation = "generate_presentation"
)

const analyzeKeywords = 10

// TextInput is the argument of the text-only tools.
type TextInput struct {
	Text string `json:"text" jsonschema:"the document text, markdown is understood"`
}

// PlanInput is the argument of plan_presentation.
type PlanInput struct {
	Text  string `json:"text" jsonschema:"the document text, markdown is understood"`
	Theme string `json:"theme,omitempty" jsonschema:"presentation theme, defaults to default"`
}

// GenerateInput is the argument of generate_presentation.
type GenerateInput struct {
	Text    string         `json:"text" jsonschema:"the document text to turn into slides"`
	Options map[string]any `json:"options,omitempty" jsonschema:"generation options: theme, audience, model, max_slides, use_cache"`
}

// Analysis is the result of analyze_document.
type Analysis struct {
	Statistics document.Stats    `json:"statistics"`
	Keywords   []extract.Keyword `json:"keywords"`
}

// DraftPlan is the result of plan_presentation.
type DraftPlan struct {
	Title  string               `json:"title"`
	Theme  string               `json:"theme"`
	Slides []extract.DraftSlide `json:"slides"`
}

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "slidewright"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewServer builds the MCP server. svc may be nil, in which case
// generate_presentation is not registered.
func NewServer(svc *engine.Service, cfg Config) *mcp.Server {
	cfg.defaults()
	logger := cfg.Logger.With("component", "mcp")

	server := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolExtractKeyPoints,
		Description: "Returns up to five key points of a document as \"- point\" lines",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in TextInput) (*mcp.CallToolResult, any, error) {
		if err := requireText(in.Text); err != nil {
			return nil, nil, err
		}
		return textResult(agent.ExtractKeyPoints(in.Text))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolExtractContent,
		Description: "Extracts sections, bullet lists and keywords from a document",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in TextInput) (*mcp.CallToolResult, any, error) {
		if err := requireText(in.Text); err != nil {
			return nil, nil, err
		}
		return jsonResult(extract.Extract(in.Text))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyzeDocument,
		Description: "Computes document statistics and the most frequent keywords",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in TextInput) (*mcp.CallToolResult, any, error) {
		if err := requireText(in.Text); err != nil {
			return nil, nil, err
		}
		return jsonResult(Analysis{
			Statistics: document.Analyze(in.Text),
			Keywords:   extract.Keywords(in.Text, analyzeKeywords),
		})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolPlanPresentation,
		Description: "Drafts a slide outline from the document structure without calling a model",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in PlanInput) (*mcp.CallToolResult, any, error) {
		if err := requireText(in.Text); err != nil {
			return nil, nil, err
		}
		return jsonResult(draftPlan(in.Text, in.Theme))
	})

	if svc != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolGeneratePresentation,
			Description: "Generates a complete presentation from a document with the configured model",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, any, error) {
			resp, err := svc.GenerateFromText(ctx, &api.GenerationRequest{DocumentText: in.Text, Options: in.Options}, nil)
			if err != nil {
				logger.Warn("generate_presentation failed", "error", err)
				return nil, nil, toolError(err)
			}
			logger.Info("generate_presentation completed",
				"generation_id", resp.Metadata.GenerationID,
				"slides", resp.Metadata.SlideCount)
			return jsonResult(resp)
		})
	}

	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text must not be empty")
	}
	return nil
}

// draftPlan titles the outline after the first heading.
func draftPlan(text, theme string) DraftPlan {
	if theme == "" {
		theme = "default"
	}
	plan := DraftPlan{Title: "Presentation", Theme: theme, Slides: extract.DraftSlides(text)}
	if sections := extract.Sections(text); len(sections) > 0 && sections[0].Heading != "Introduction" {
		plan.Title = sections[0].Heading
	}
	if plan.Slides == nil {
		plan.Slides = []extract.DraftSlide{}
	}
	return plan
}

// toolError keeps the client-facing message of API errors.
func toolError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Type, apiErr.Message)
	}
	return err
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return textResult(string(data))
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	debug.Log("mcp", "tool result", "bytes", len(text))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}
