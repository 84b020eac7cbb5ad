package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestComplete_StructuredOutput(t *testing.T) {
	temp := 0.2
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var chatReq ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		want := ChatCompletionRequest{
			Model: "gpt-4o",
			Messages: []ChatMessage{
				{Role: "system", Content: "You plan presentations."},
				{Role: "user", Content: "Plan this."},
			},
			Temperature: &temp,
			N:           1,
			ResponseFormat: &ResponseFormat{
				Type: "json_schema",
				JSONSchema: &JSONSchema{
					Name:   "presentation_plan",
					Schema: map[string]any{"type": "object"},
				},
			},
		}
		if diff := cmp.Diff(want, chatReq); diff != "" {
			t.Errorf("request mismatch (-want +got):\n%s", diff)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-2024-08-06",
			Choices: []ChatChoice{{
				Message:      ChatMessage{Role: "assistant", Content: `{"title":"T"}`},
				FinishReason: "stop",
			}},
			Usage: &ChatUsage{PromptTokens: 12, CompletionTokens: 9, TotalTokens: 21},
		})
	})

	resp, err := c.Complete(context.Background(), &provider.Request{
		Instructions: "You plan presentations.",
		Prompt:       "Plan this.",
		Temperature:  &temp,
		SchemaName:   "presentation_plan",
		Schema:       map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	want := &provider.Response{
		Content:      `{"title":"T"}`,
		Model:        "gpt-4o-2024-08-06",
		FinishReason: "stop",
		Usage:        api.Usage{PromptTokens: 12, CompletionTokens: 9, TotalTokens: 21},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_ContentParts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]},"finish_reason":"stop"}]}`)
	})

	resp, err := c.Complete(context.Background(), &provider.Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"a":1}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("model should fall back to the request model, got %q", resp.Model)
	}
}

func TestComplete_EmptyReplies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`},
		{"truncated", `{"choices":[{"message":{"role":"assistant","content":null},"finish_reason":"length"}]}`},
		{"not json", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			_, err := c.Complete(context.Background(), &provider.Request{Prompt: "x"})
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
				t.Fatalf("err = %v, want model_error", err)
			}
		})
	}
}

func TestComplete_HTTPErrors(t *testing.T) {
	tests := []struct {
		status        int
		body          string
		wantType      api.ErrorType
		wantMessage   string
		wantRetryable bool
	}{
		{400, `{"error":{"message":"bad model param","type":"invalid_request_error"}}`, api.ErrorTypeInvalidRequest, "bad model param", false},
		{401, ``, api.ErrorTypeModelError, "backend authentication failed", false},
		{404, ``, api.ErrorTypeNotFound, "backend resource not found", false},
		{429, `{"error":{"message":"slow down"}}`, api.ErrorTypeTooManyRequests, "slow down", true},
		{502, `gateway`, api.ErrorTypeModelError, "backend server error (HTTP 502)", true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.Complete(context.Background(), &provider.Request{Prompt: "x"})

			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *api.APIError", err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if provider.IsRetryable(err) != tt.wantRetryable {
				t.Errorf("IsRetryable = %v, want %v", provider.IsRetryable(err), tt.wantRetryable)
			}
		})
	}
}

func TestComplete_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Complete(context.Background(), &provider.Request{Prompt: "x"})

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
		t.Fatalf("err = %v, want model_error", err)
	}
	if !provider.IsRetryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestComplete_ContextCancellationPassesThrough(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, &provider.Request{Prompt: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestNew(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Name() != "openai" {
		t.Errorf("Name = %q", c.Name())
	}
	if !c.Capabilities().RequiresAPIKey {
		t.Error("hosted OpenAI should require an API key")
	}

	local, err := New(Config{Name: "vllm", BaseURL: "http://localhost:8000/v1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if local.Capabilities().RequiresAPIKey {
		t.Error("self-hosted backends should not require an API key")
	}
	if local.cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", local.cfg.BaseURL)
	}

	if _, err := New(Config{BaseURL: "localhost:8000"}); err == nil {
		t.Error("expected error for base URL without scheme")
	}
}

func TestExtractErrorMessage(t *testing.T) {
	if got := ExtractErrorMessage(bytes.NewBufferString(`{"error":{"message":"boom"}}`)); got != "boom" {
		t.Errorf("got %q", got)
	}
	if got := ExtractErrorMessage(bytes.NewBufferString(`not json`)); got != "" {
		t.Errorf("got %q", got)
	}
	if got := ExtractErrorMessage(nil); got != "" {
		t.Errorf("got %q", got)
	}
}
