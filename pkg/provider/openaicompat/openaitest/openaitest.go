// Package openaitest provides a deterministic OpenAI-compatible Chat
// Completions backend. Replies are chosen by the json_schema name of the
// request: presentation plans are drafted from the document headings in the
// prompt and slide content echoes the planned key points. It backs the
// mock-llm command and tests that exercise the real HTTP client.
package openaitest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/extract"
	"github.com/rhuss/slidewright/pkg/provider/openaicompat"
)

// Model is reported when a request names none.
const Model = "mock-model"

// Usage reported for every completion.
var Usage = openaicompat.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

var (
	docRe       = regexp.MustCompile(`(?s)from this document:\n\n(.*?)\n\n(?:Key points identified|Preferred theme|Target audience|Use at most|\nAnalyze the content)`)
	maxSlidesRe = regexp.MustCompile(`Use at most (\d+) slides\.`)
	themeRe     = regexp.MustCompile(`Preferred theme: (.+)`)
	slideRe     = regexp.MustCompile(`slide (\d+): '([^']*)'`)
	pointsRe    = regexp.MustCompile(`(?s)key points:\n(.*?)\n\nFormat guidelines`)
)

// Backend is an http.Handler serving /v1/chat/completions and /v1/models.
type Backend struct {
	mux   *http.ServeMux
	calls atomic.Int64

	// FailWith makes every completion answer with this status when non-zero.
	FailWith atomic.Int32
}

// New returns a Backend.
func New() *Backend {
	b := &Backend{mux: http.NewServeMux()}
	b.mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	b.mux.HandleFunc("GET /v1/models", handleModels)
	b.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// Calls returns the number of completion requests served.
func (b *Backend) Calls() int64 { return b.calls.Load() }

func (b *Backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)

	if status := int(b.FailWith.Load()); status != 0 {
		writeError(w, status, "server_error", "mock failure")
		return
	}

	var req openaicompat.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request")
		return
	}
	if req.ResponseFormat == nil || req.ResponseFormat.JSONSchema == nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "response_format json_schema is required")
		return
	}

	prompt := lastUserMessage(req.Messages)
	var reply any
	switch name := req.ResponseFormat.JSONSchema.Name; name {
	case "presentation_plan":
		reply = Plan(prompt)
	case "slide_content":
		sc, err := Slide(prompt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
			return
		}
		reply = sc
	default:
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("unknown schema %q", name))
		return
	}

	content, err := json.Marshal(reply)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = Model
	}
	usage := Usage
	writeJSON(w, http.StatusOK, openaicompat.ChatCompletionResponse{
		ID:     "chatcmpl-mock-" + strconv.FormatInt(b.calls.Load(), 10),
		Object: "chat.completion",
		Model:  model,
		Choices: []openaicompat.ChatChoice{{
			Message:      openaicompat.ChatMessage{Role: "assistant", Content: string(content)},
			FinishReason: "stop",
		}},
		Usage: &usage,
	})
}

// Plan drafts a presentation plan from the document quoted in a planning
// prompt: one slide per section, capped by the prompt's slide limit.
func Plan(prompt string) api.PresentationPlan {
	doc := prompt
	if m := docRe.FindStringSubmatch(prompt); m != nil {
		doc = m[1]
	}

	plan := api.PresentationPlan{Title: "Presentation", Theme: "default"}
	if m := themeRe.FindStringSubmatch(prompt); m != nil {
		plan.Theme = strings.TrimSpace(m[1])
	}
	if sections := extract.Sections(doc); len(sections) > 0 && sections[0].Heading != "Introduction" {
		plan.Title = sections[0].Heading
	}

	drafts := extract.DraftSlides(doc)
	if len(drafts) == 0 {
		drafts = []extract.DraftSlide{{Title: plan.Title}}
	}
	if m := maxSlidesRe.FindStringSubmatch(prompt); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 && n < len(drafts) {
			drafts = drafts[:n]
		}
	}

	for i, d := range drafts {
		tokens := d.Bullets
		if len(tokens) == 0 {
			tokens = []string{d.Title}
		}
		plan.Slides = append(plan.Slides, api.SlideStructure{
			SlideNumber:   i + 1,
			Title:         strings.ReplaceAll(d.Title, "'", ""),
			ContentTokens: tokens,
			FormatTokens:  []string{"bullet points"},
		})
	}
	return plan
}

// Slide writes the content of the slide named in a content prompt.
func Slide(prompt string) (api.SlideContent, error) {
	m := slideRe.FindStringSubmatch(prompt)
	if m == nil {
		return api.SlideContent{}, fmt.Errorf("no slide in prompt")
	}
	num, _ := strconv.Atoi(m[1])

	var b strings.Builder
	b.WriteString("<ul>")
	if p := pointsRe.FindStringSubmatch(prompt); p != nil {
		for _, point := range strings.Split(p[1], ", ") {
			if point = strings.TrimSpace(point); point != "" {
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(point))
			}
		}
	}
	b.WriteString("</ul>")

	return api.SlideContent{
		SlideNumber: num,
		Title:       m[2],
		Content:     b.String(),
		Notes:       "Talk about " + m[2] + ".",
	}, nil
}

func lastUserMessage(msgs []openaicompat.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			if s, ok := msgs[i].Content.(string); ok {
				return s
			}
		}
	}
	return ""
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": Model, "object": "model", "owned_by": "slidewright"},
		},
	})
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	var resp openaicompat.ChatErrorResponse
	resp.Error.Message = msg
	resp.Error.Type = typ
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
