package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestComplete(t *testing.T) {
	temp, topP := 0.3, 0.95
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+DefaultModel+":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gen, _ := body["generationConfig"].(map[string]any)
		if gen["responseMimeType"] != "application/json" {
			t.Errorf("responseMimeType = %v", gen["responseMimeType"])
		}
		if gen["responseJsonSchema"] == nil {
			t.Error("responseJsonSchema missing")
		}
		if body["systemInstruction"] == nil {
			t.Error("systemInstruction missing")
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"slide_number\":1}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 7, "totalTokenCount": 12},
			"modelVersion": "gemini-2.0-flash-001"
		}`)
	})

	resp, err := p.Complete(context.Background(), &provider.Request{
		Instructions: "Write slides.",
		Prompt:       "Slide 1",
		Temperature:  &temp,
		TopP:         &topP,
		SchemaName:   "slide_content",
		Schema:       map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"slide_number":1}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Model != "gemini-2.0-flash-001" {
		t.Errorf("Model = %q", resp.Model)
	}
	if resp.FinishReason != "STOP" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	want := api.Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}
	if resp.Usage != want {
		t.Errorf("Usage = %+v, want %+v", resp.Usage, want)
	}
}

func TestCompleteMapsAPIErrors(t *testing.T) {
	tests := []struct {
		status        int
		wantType      api.ErrorType
		wantRetryable bool
	}{
		{http.StatusBadRequest, api.ErrorTypeInvalidRequest, false},
		{http.StatusForbidden, api.ErrorTypeModelError, false},
		{http.StatusTooManyRequests, api.ErrorTypeTooManyRequests, true},
		{http.StatusServiceUnavailable, api.ErrorTypeModelError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": tt.status, "message": "nope", "status": "ERR"},
				})
			})

			_, err := p.Complete(context.Background(), &provider.Request{Prompt: "x"})
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *api.APIError", err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if provider.IsRetryable(err) != tt.wantRetryable {
				t.Errorf("IsRetryable = %v, want %v", provider.IsRetryable(err), tt.wantRetryable)
			}
		})
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": []}, "finishReason": "SAFETY"}]}`)
	})
	_, err := p.Complete(context.Background(), &provider.Request{Prompt: "x"})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
		t.Fatalf("err = %v, want model_error", err)
	}
	if !strings.Contains(apiErr.Message, "SAFETY") {
		t.Errorf("message %q should name the finish reason", apiErr.Message)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
