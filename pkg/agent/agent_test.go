package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/observability"
	"github.com/rhuss/slidewright/pkg/provider"
	"github.com/rhuss/slidewright/pkg/provider/providertest"
)

// recordingState is an in-memory State.
type recordingState struct {
	mu       sync.Mutex
	text     string
	usage    api.Usage
	calls    int
	tools    map[string]int
	counters map[string]int
}

func newState(text string) *recordingState {
	return &recordingState{text: text, tools: map[string]int{}, counters: map[string]int{}}
}

func (s *recordingState) RecordTokenUsage(u api.Usage) { s.mu.Lock(); s.usage.Add(u); s.mu.Unlock() }
func (s *recordingState) RecordAPICall()               { s.mu.Lock(); s.calls++; s.mu.Unlock() }
func (s *recordingState) RecordTool(name string, chars int) {
	s.mu.Lock()
	s.tools[name] += chars
	s.mu.Unlock()
}
func (s *recordingState) Increment(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key]
}
func (s *recordingState) DocumentText() string { return s.text }
func (s *recordingState) DocumentStatistics() document.Stats {
	return document.Analyze(s.text)
}

type pair struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func testAgent() *Agent {
	return &Agent{
		Name:        "tester",
		Temperature: 0.1,
		TopP:        DefaultTopP,
		SchemaName:  "pair",
		Schema:      map[string]any{"type": "object"},
	}
}

func TestRunDecodesFencedJSON(t *testing.T) {
	fake := providertest.New(providertest.Reply("```json\n{\"a\": 1, \"b\": \"x\"}\n```",
		api.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
	st := newState("")

	before := testutil.ToFloat64(observability.LLMRequestsTotal.WithLabelValues("fake", "tester", "success"))

	got, err := Run[pair](context.Background(), testAgent(), fake, "go", st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(&pair{A: 1, B: "x"}, got); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}

	if st.calls != 1 {
		t.Errorf("api calls = %d, want 1", st.calls)
	}
	if st.usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", st.usage.TotalTokens)
	}
	after := testutil.ToFloat64(observability.LLMRequestsTotal.WithLabelValues("fake", "tester", "success"))
	if after-before != 1 {
		t.Errorf("success counter delta = %v, want 1", after-before)
	}

	req := fake.Requests()[0]
	if *req.Temperature != 0.1 || *req.TopP != DefaultTopP {
		t.Errorf("sampling = %v/%v", *req.Temperature, *req.TopP)
	}
	if req.SchemaName != "pair" {
		t.Errorf("SchemaName = %q", req.SchemaName)
	}
}

func TestRunInvalidJSONIsModelError(t *testing.T) {
	fake := providertest.New(providertest.Reply("Sure! Here is your plan.", api.Usage{}))
	_, err := Run[pair](context.Background(), testAgent(), fake, "go", nil)

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
		t.Fatalf("err = %v, want model_error", err)
	}
}

func TestRunValidatesAgainstCapabilities(t *testing.T) {
	fake := providertest.New(nil)
	fake.Caps.StructuredOutput = false

	_, err := Run[pair](context.Background(), testAgent(), fake, "go", nil)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Param != "response_format" {
		t.Fatalf("err = %v, want response_format error", err)
	}
	if len(fake.Requests()) != 0 {
		t.Error("provider should not be called for invalid requests")
	}
}

func TestRunPropagatesProviderErrors(t *testing.T) {
	fake := providertest.New(func(context.Context, *provider.Request) (*provider.Response, error) {
		return nil, provider.StatusError(429, "")
	})
	st := newState("")

	_, err := Run[pair](context.Background(), testAgent(), fake, "go", st)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeTooManyRequests {
		t.Fatalf("err = %v, want too_many_requests", err)
	}
	if st.calls != 1 {
		t.Errorf("failed calls should still be counted, got %d", st.calls)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractKeyPoints(t *testing.T) {
	text := strings.Join([]string{
		"# Heading that is long enough",
		"short",
		"- Revenue grew in every region.",
		"2. Costs stayed flat for the year.",
		"• Hiring resumed in the spring.",
		strings.Repeat("x", 250),
		"Customer churn fell to two percent.",
		"Margins improved after the price change.",
		"This sixth point should be dropped.",
	}, "\n\n")

	want := strings.Join([]string{
		"- Revenue grew in every region.",
		"- Costs stayed flat for the year.",
		"- Hiring resumed in the spring.",
		"- Customer churn fell to two percent.",
		"- Margins improved after the price change.",
	}, "\n")

	if diff := cmp.Diff(want, ExtractKeyPoints(text)); diff != "" {
		t.Errorf("ExtractKeyPoints mismatch (-want +got):\n%s", diff)
	}
	if got := ExtractKeyPoints(""); got != "" {
		t.Errorf("empty text gave %q", got)
	}
}

func TestExtractKeyPointsWithContext(t *testing.T) {
	st := newState("The document held by the context.")

	got := ExtractKeyPointsWithContext(st, "")
	if got != "- The document held by the context." {
		t.Errorf("got %q", got)
	}
	ExtractKeyPointsWithContext(st, "An explicit argument wins.")

	if st.counters["tool_usage.extract_key_points"] != 2 {
		t.Errorf("tool usage counter = %d, want 2", st.counters["tool_usage.extract_key_points"])
	}
	wantChars := len("The document held by the context.") + len("An explicit argument wins.")
	if st.tools[ToolExtractKeyPoints] != wantChars {
		t.Errorf("chars processed = %d, want %d", st.tools[ToolExtractKeyPoints], wantChars)
	}

	if got := ExtractKeyPointsWithContext(nil, "Works without any context."); got != "- Works without any context." {
		t.Errorf("nil state: got %q", got)
	}
}

func TestAnalyzeDocument(t *testing.T) {
	st := newState("One. Two!\n\nThree?")
	got := AnalyzeDocument(st)
	if got.ParagraphCount != 2 || got.SentenceCount != 3 {
		t.Errorf("stats = %+v", got)
	}
	if AnalyzeDocument(nil) != (document.Stats{}) {
		t.Error("nil state should give zero stats")
	}
}

func TestPlanPromptAndResult(t *testing.T) {
	fake := providertest.New(providertest.Reply(
		`{"title":"Q3 Review","theme":"business","slides":[{"slide_number":1,"title":"Results","content_tokens":["growth"],"format_tokens":[],"design_tokens":[]}]}`,
		api.Usage{TotalTokens: 3}))

	a := NewPlanningAgent("gpt-4o")
	plan, err := a.Plan(context.Background(), fake, "Revenue grew in every region this quarter.",
		api.GenerationOptions{Theme: "business", Audience: "executives", MaxSlides: 4}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Title != "Q3 Review" || len(plan.Slides) != 1 {
		t.Errorf("plan = %+v", plan)
	}

	req := fake.Requests()[0]
	for _, want := range []string{
		"Revenue grew in every region this quarter.",
		"Key points identified in the document:\n- Revenue grew",
		"Preferred theme: business",
		"Target audience: executives",
		"Use at most 4 slides.",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if req.Model != "gpt-4o" || *req.Temperature != 0.2 || req.SchemaName != "presentation_plan" {
		t.Errorf("request = model %q temp %v schema %q", req.Model, *req.Temperature, req.SchemaName)
	}
}

func TestPlanRejectsEmptyPlans(t *testing.T) {
	tests := []struct {
		name, reply string
	}{
		{"no slides", `{"title":"T","theme":"business","slides":[]}`},
		{"no title", `{"title":" ","theme":"business","slides":[{"slide_number":1,"title":"A"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := providertest.New(providertest.Reply(tt.reply, api.Usage{}))
			_, err := NewPlanningAgent("").Plan(context.Background(), fake, "text", api.GenerationOptions{}, nil)
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeModelError {
				t.Fatalf("err = %v, want model_error", err)
			}
		})
	}
}

func TestSlidePrompt(t *testing.T) {
	got := SlidePrompt(api.SlideStructure{
		SlideNumber:   2,
		Title:         "Growth",
		ContentTokens: []string{"revenue", "margin"},
	}, "Revenue grew.")

	for _, want := range []string{
		"Generate detailed content for slide 2: 'Growth'",
		"revenue, margin",
		defaultFormatHint,
		defaultDesignHint,
		"Relevant document content:\nRevenue grew.",
		"Please generate HTML content for the slide and helpful presenter notes.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}

	custom := SlidePrompt(api.SlideStructure{FormatTokens: []string{"bullets", "table"}, DesignTokens: []string{"chart"}}, "")
	if !strings.Contains(custom, "bullets, table") || !strings.Contains(custom, "chart") {
		t.Errorf("custom hints missing:\n%s", custom)
	}
}

// slideReply answers content requests with a slide echoing the requested
// number. Earlier slides answer slower so that completion order differs
// from plan order.
func slideReply(total int) func(context.Context, *provider.Request) (*provider.Response, error) {
	return func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		var n int
		fmt.Sscanf(req.Prompt, "Generate detailed content for slide %d:", &n)
		select {
		case <-time.After(time.Duration(total-n) * 5 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &provider.Response{
			Content: fmt.Sprintf(`{"slide_number":%d,"content":"<p>slide %d</p>","notes":"say %d"}`, n, n, n),
			Usage:   api.Usage{TotalTokens: 1},
		}, nil
	}
}

func testPlan(n int) *api.PresentationPlan {
	plan := &api.PresentationPlan{Title: "Deck", Theme: "creative"}
	for i := 1; i <= n; i++ {
		plan.Slides = append(plan.Slides, api.SlideStructure{SlideNumber: i, Title: fmt.Sprintf("Slide %d", i)})
	}
	return plan
}

func TestGenerateSlidesPreservesOrder(t *testing.T) {
	fake := providertest.New(slideReply(4))
	st := newState("")

	var progress []int
	deck, err := NewContentAgent("").GenerateSlides(context.Background(), fake, testPlan(4), "body", st,
		SlideOptions{Concurrency: 3, OnSlide: func(done, total int) {
			if total != 4 {
				t.Errorf("total = %d, want 4", total)
			}
			progress = append(progress, done)
		}})
	if err != nil {
		t.Fatalf("GenerateSlides: %v", err)
	}

	if deck.Title != "Deck" || deck.Theme != "creative" {
		t.Errorf("deck header = %q/%q", deck.Title, deck.Theme)
	}
	for i, s := range deck.Slides {
		if s.SlideNumber != i+1 {
			t.Errorf("slide %d has number %d", i, s.SlideNumber)
		}
		if s.Title != fmt.Sprintf("Slide %d", i+1) {
			t.Errorf("slide %d title = %q, want planned title", i, s.Title)
		}
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if st.calls != 4 || st.usage.TotalTokens != 4 {
		t.Errorf("calls = %d tokens = %d", st.calls, st.usage.TotalTokens)
	}
}

func TestGenerateSlidesStopsOnError(t *testing.T) {
	fake := providertest.New(func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		if strings.Contains(req.Prompt, "slide 2:") {
			return nil, api.NewModelError("boom")
		}
		return &provider.Response{Content: `{"content":"<p>x</p>","notes":""}`}, nil
	})

	_, err := NewContentAgent("").GenerateSlides(context.Background(), fake, testPlan(3), "", nil, SlideOptions{})
	if err == nil || !strings.Contains(err.Error(), "slide 2 (Slide 2)") {
		t.Fatalf("err = %v, want slide 2 failure", err)
	}
	if n := len(fake.Requests()); n != 2 {
		t.Errorf("sequential generation should stop after the failure, made %d requests", n)
	}
}
