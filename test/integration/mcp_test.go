package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/tools"
)

func TestMCPGeneratePresentation(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: testEnv.BaseURL() + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cs.Close()

	names := map[string]bool{}
	for tool, err := range cs.Tools(ctx, nil) {
		if err != nil {
			t.Fatalf("listing tools: %v", err)
		}
		names[tool.Name] = true
	}
	if !names[tools.ToolGeneratePresentation] {
		t.Fatalf("tools = %v, missing %s", names, tools.ToolGeneratePresentation)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.ToolGeneratePresentation,
		Arguments: map[string]any{"text": releaseNotes, "options": map[string]any{"max_slides": 2}},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}

	var gen api.GenerationResponse
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &gen); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if gen.Presentation == nil || gen.Presentation.Title != "Release Notes" {
		t.Errorf("presentation = %+v", gen.Presentation)
	}
}
