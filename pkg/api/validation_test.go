package api

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidateGenerationRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		req       GenerationRequest
		wantParam string
	}{
		{
			name: "valid request accepted",
			req:  GenerationRequest{DocumentText: "Quarterly results improved."},
		},
		{
			name:      "empty text rejected",
			req:       GenerationRequest{DocumentText: "   \n"},
			wantParam: "document_text",
		},
		{
			name:      "oversized text rejected",
			req:       GenerationRequest{DocumentText: strings.Repeat("a", cfg.MaxDocumentSize+1)},
			wantParam: "document_text",
		},
		{
			name:      "negative max_slides rejected",
			req:       GenerationRequest{DocumentText: "text", Options: map[string]any{"max_slides": -1}},
			wantParam: "options.max_slides",
		},
		{
			name:      "max_slides above limit rejected",
			req:       GenerationRequest{DocumentText: "text", Options: map[string]any{"max_slides": 500}},
			wantParam: "options.max_slides",
		},
		{
			name:      "wrongly typed option rejected",
			req:       GenerationRequest{DocumentText: "text", Options: map[string]any{"max_slides": "many"}},
			wantParam: "options",
		},
		{
			name: "unknown options ignored",
			req:  GenerationRequest{DocumentText: "text", Options: map[string]any{"color": "blue"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGenerationRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error with param %q, got nil", tt.wantParam)
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(map[string]any{
		"theme":      "business",
		"max_slides": 7,
		"use_cache":  false,
		"extra":      []int{1},
	})
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if opts.Theme != "business" {
		t.Errorf("Theme = %q, want %q", opts.Theme, "business")
	}
	if opts.MaxSlides != 7 {
		t.Errorf("MaxSlides = %d, want 7", opts.MaxSlides)
	}
	if opts.CacheEnabled() {
		t.Error("CacheEnabled() = true, want false")
	}

	empty, err := ParseOptions(nil)
	if err != nil {
		t.Fatalf("ParseOptions(nil): %v", err)
	}
	if !empty.CacheEnabled() {
		t.Error("CacheEnabled() should default to true")
	}
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name      string
		req       RegisterRequest
		wantParam string
	}{
		{"valid", RegisterRequest{Email: "ada@example.com", Password: "longenough", Name: "Ada"}, ""},
		{"bad email", RegisterRequest{Email: "ada", Password: "longenough", Name: "Ada"}, "email"},
		{"email without domain dot", RegisterRequest{Email: "ada@localhost", Password: "longenough", Name: "Ada"}, "email"},
		{"display name form rejected", RegisterRequest{Email: "Ada <ada@example.com>", Password: "longenough", Name: "Ada"}, "email"},
		{"short password", RegisterRequest{Email: "ada@example.com", Password: "short", Name: "Ada"}, "password"},
		{"short name", RegisterRequest{Email: "ada@example.com", Password: "longenough", Name: "A"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(&tt.req)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Param != tt.wantParam {
				t.Errorf("ValidateRegister() = %v, want param %q", err, tt.wantParam)
			}
		})
	}
}

func TestValidateUserUpdate(t *testing.T) {
	if err := ValidateUserUpdate(&UserUpdateRequest{}); err != nil {
		t.Errorf("empty update rejected: %v", err)
	}
	if err := ValidateUserUpdate(&UserUpdateRequest{Name: strPtr("X")}); err == nil || err.Param != "name" {
		t.Errorf("short name: got %v", err)
	}
	if err := ValidateUserUpdate(&UserUpdateRequest{Password: strPtr("1234567")}); err == nil || err.Param != "password" {
		t.Errorf("short password: got %v", err)
	}
}

func TestValidatePresentationCreate(t *testing.T) {
	content := &Presentation{
		Title:  "Roadmap",
		Theme:  "business",
		Slides: []SlideContent{{SlideNumber: 1, Title: "Intro", Content: "<p>hi</p>"}},
	}

	tests := []struct {
		name      string
		req       PresentationCreateRequest
		wantParam string
	}{
		{"valid", PresentationCreateRequest{Title: "Roadmap", Theme: "business", Content: content}, ""},
		{"missing title", PresentationCreateRequest{Theme: "business", Content: content}, "title"},
		{"missing theme", PresentationCreateRequest{Title: "Roadmap", Content: content}, "theme"},
		{"missing content", PresentationCreateRequest{Title: "Roadmap", Theme: "business"}, "content"},
		{
			"untitled slide",
			PresentationCreateRequest{Title: "Roadmap", Theme: "business", Content: &Presentation{
				Title: "Roadmap", Theme: "business", Slides: []SlideContent{{SlideNumber: 1}},
			}},
			"content.slides[0].title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePresentationCreate(&tt.req)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Param != tt.wantParam {
				t.Errorf("ValidatePresentationCreate() = %v, want param %q", err, tt.wantParam)
			}
		})
	}
}

func TestValidatePresentationUpdate(t *testing.T) {
	if err := ValidatePresentationUpdate(&PresentationUpdateRequest{Title: strPtr("")}); err == nil {
		t.Error("empty title accepted")
	}
	if err := ValidatePresentationUpdate(&PresentationUpdateRequest{Theme: strPtr("dark")}); err != nil {
		t.Errorf("theme update rejected: %v", err)
	}
}

func TestValidatePaging(t *testing.T) {
	tests := []struct {
		skip, limit int
		wantErr     bool
	}{
		{0, 0, false},
		{10, 100, false},
		{-1, 10, true},
		{0, 101, true},
		{0, -5, true},
	}
	for _, tt := range tests {
		err := ValidatePaging(tt.skip, tt.limit)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePaging(%d, %d) = %v, wantErr %v", tt.skip, tt.limit, err, tt.wantErr)
		}
	}
}

func TestStatusEventCarriesProgress(t *testing.T) {
	ev := StatusEvent(TaskStatusResponse{TaskID: "t1", Status: TaskStatusRunning, Progress: 0.4, Message: "Creating presentation plan"})
	if ev.Event != EventStatus {
		t.Errorf("Event = %q, want %q", ev.Event, EventStatus)
	}
	if ev.Data.Progress == nil || *ev.Data.Progress != 0.4 {
		t.Errorf("Progress = %v, want 0.4", ev.Data.Progress)
	}

	done := CompleteEvent(TaskStatusResponse{TaskID: "t1", Status: TaskStatusCompleted, Progress: 1})
	if done.Data.Progress != nil {
		t.Error("complete event should not carry progress")
	}
}
