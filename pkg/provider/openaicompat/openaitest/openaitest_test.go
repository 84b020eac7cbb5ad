package openaitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/provider/openaicompat"
)

const doc = `# Release Notes

## Features

- Faster exports
- Dark theme

## Fixes

- Upload retries
`

func TestPlan(t *testing.T) {
	prompt := "Create a presentation structure from this document:\n\n" + doc + "\n\nPreferred theme: dark\nUse at most 2 slides.\n\nAnalyze the content"
	plan := Plan(prompt)

	if plan.Title != "Release Notes" || plan.Theme != "dark" {
		t.Errorf("plan = %+v", plan)
	}
	if len(plan.Slides) != 2 {
		t.Fatalf("slides = %d, want 2", len(plan.Slides))
	}
	for i, s := range plan.Slides {
		if s.SlideNumber != i+1 || len(s.ContentTokens) == 0 {
			t.Errorf("slide %d = %+v", i, s)
		}
	}
}

func TestSlide(t *testing.T) {
	sc, err := Slide("Generate detailed content for slide 2: 'Features'\n\nContent should incorporate these key points:\nFaster exports, Dark <theme>\n\nFormat guidelines:\n-")
	if err != nil {
		t.Fatalf("Slide: %v", err)
	}
	if sc.SlideNumber != 2 || sc.Title != "Features" {
		t.Errorf("slide = %+v", sc)
	}
	if want := "<ul><li>Faster exports</li><li>Dark &lt;theme&gt;</li></ul>"; sc.Content != want {
		t.Errorf("content = %q, want %q", sc.Content, want)
	}

	if _, err := Slide("no slide here"); err == nil {
		t.Error("expected error for prompt without slide")
	}
}

func TestBackendDrivesEngine(t *testing.T) {
	backend := New()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client, err := openaicompat.New(openaicompat.Config{BaseURL: srv.URL, Model: Model})
	if err != nil {
		t.Fatalf("openaicompat.New: %v", err)
	}
	e, err := engine.New(client, engine.Config{KeyConfigured: true})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	svc := engine.NewService(e, nil, engine.ServiceConfig{})

	resp, err := svc.GenerateFromText(context.Background(), &api.GenerationRequest{DocumentText: doc}, nil)
	if err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	pres := resp.Presentation
	if pres.Title != "Release Notes" {
		t.Errorf("title = %q", pres.Title)
	}
	if len(pres.Slides) < 2 {
		t.Fatalf("slides = %d, want at least 2", len(pres.Slides))
	}
	if !strings.Contains(pres.Slides[1].Content, "<li>") {
		t.Errorf("slide content = %q", pres.Slides[1].Content)
	}
	if want := int64(1 + len(pres.Slides)); backend.Calls() != want {
		t.Errorf("calls = %d, want %d", backend.Calls(), want)
	}
}

func TestBackendRejects(t *testing.T) {
	srv := httptest.NewServer(New())
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", "{"},
		{"no schema", `{"model":"m","messages":[{"role":"user","content":"hi"}]}`},
		{"unknown schema", `{"messages":[],"response_format":{"type":"json_schema","json_schema":{"name":"poem","schema":{}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}
