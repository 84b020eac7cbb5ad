package engine

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/slidewright/pkg/agent"
	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
)

// Pipeline stage names recorded in the generation context.
const (
	StageAnalysis   = "analysis"
	StageExtraction = "extraction"
	StagePlanning   = "planning"
	StageContent    = "content_generation"
	StageFinalize   = "post_processing"
)

// ToolStat accumulates the use of one tool.
type ToolStat struct {
	Calls      int `json:"calls"`
	Characters int `json:"characters_processed"`
}

// StageError is an error recorded against a stage.
type StageError struct {
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats tracks the cost and progress of one generation.
type Stats struct {
	StartTime         time.Time           `json:"start_time"`
	EndTime           *time.Time          `json:"end_time,omitempty"`
	PromptTokens      int                 `json:"prompt_tokens"`
	CompletionTokens  int                 `json:"completion_tokens"`
	TotalTokens       int                 `json:"total_tokens"`
	TotalAPICalls     int                 `json:"total_api_calls"`
	ToolsUsed         map[string]int      `json:"tools_used"`
	ToolStats         map[string]ToolStat `json:"tool_stats"`
	StagesCompleted   []string            `json:"stages_completed"`
	ErrorsEncountered []StageError        `json:"errors_encountered"`
}

// GenerationContext is the state shared by the stages of one generation,
// the agents and their tools. All methods are safe for concurrent use.
type GenerationContext struct {
	mu sync.RWMutex

	id       string
	source   string
	text     string
	docStats document.Stats

	extracted map[string]any
	stages    map[string]api.StageStatus
	shared    map[string]any
	outputs   map[string]any
	stats     Stats

	now func() time.Time
}

// Ensure GenerationContext can be handed to the agents.
var _ agent.State = (*GenerationContext)(nil)

// NewGenerationContext starts a context. An empty id gets a fresh UUID.
func NewGenerationContext(id, source string) *GenerationContext {
	if id == "" {
		id = uuid.NewString()
	}
	g := &GenerationContext{
		id:        id,
		source:    source,
		extracted: make(map[string]any),
		stages:    make(map[string]api.StageStatus),
		shared:    make(map[string]any),
		outputs:   make(map[string]any),
		now:       time.Now,
	}
	g.stats = Stats{
		StartTime: g.now(),
		ToolsUsed: make(map[string]int),
		ToolStats: make(map[string]ToolStat),
	}
	return g
}

// ID returns the generation ID.
func (g *GenerationContext) ID() string { return g.id }

// Source describes where the document came from ("text" or a file name).
func (g *GenerationContext) Source() string { return g.source }

// SetDocument stores the document text and its statistics.
func (g *GenerationContext) SetDocument(text string, stats document.Stats) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.text = text
	g.docStats = stats
}

func (g *GenerationContext) DocumentText() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.text
}

func (g *GenerationContext) DocumentStatistics() document.Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.docStats
}

// SetExtracted stores extracted content under kind (sections, keywords, ...).
func (g *GenerationContext) SetExtracted(kind string, v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.extracted[kind] = v
}

func (g *GenerationContext) Extracted(kind string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.extracted[kind]
	return v, ok
}

// StartStage marks stage as in progress.
func (g *GenerationContext) StartStage(stage string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stages[stage] = api.StageInProgress
}

// CompleteStage marks stage as completed. Each stage is listed once in
// StagesCompleted.
func (g *GenerationContext) CompleteStage(stage string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stages[stage] = api.StageCompleted
	if !slices.Contains(g.stats.StagesCompleted, stage) {
		g.stats.StagesCompleted = append(g.stats.StagesCompleted, stage)
	}
}

// FailStage marks stage as failed and records err.
func (g *GenerationContext) FailStage(stage string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stages[stage] = api.StageFailed
	g.stats.ErrorsEncountered = append(g.stats.ErrorsEncountered, StageError{
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: g.now(),
	})
}

// StageStatus returns the status of stage, not_started if never touched.
func (g *GenerationContext) StageStatus(stage string) api.StageStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if s, ok := g.stages[stage]; ok {
		return s
	}
	return api.StageNotStarted
}

func (g *GenerationContext) SetAgentOutput(name string, v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outputs[name] = v
}

func (g *GenerationContext) AgentOutput(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.outputs[name]
	return v, ok
}

// Set stores shared data under key.
func (g *GenerationContext) Set(key string, v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shared[key] = v
}

// Get returns shared data stored under key.
func (g *GenerationContext) Get(key string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.shared[key]
	return v, ok
}

// Increment adds one to the integer stored under key. A missing or
// non-integer value counts as zero.
func (g *GenerationContext) Increment(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, _ := g.shared[key].(int)
	n++
	g.shared[key] = n
	return n
}

func (g *GenerationContext) RecordTokenUsage(u api.Usage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.PromptTokens += u.PromptTokens
	g.stats.CompletionTokens += u.CompletionTokens
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	g.stats.TotalTokens += total
}

func (g *GenerationContext) RecordAPICall() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.TotalAPICalls++
}

// RecordTool registers a call of tool name over chars characters of input.
func (g *GenerationContext) RecordTool(name string, chars int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.ToolsUsed[name]++
	ts := g.stats.ToolStats[name]
	ts.Calls++
	ts.Characters += chars
	g.stats.ToolStats[name] = ts
}

// Usage returns the tokens consumed so far.
func (g *GenerationContext) Usage() api.Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return api.Usage{
		PromptTokens:     g.stats.PromptTokens,
		CompletionTokens: g.stats.CompletionTokens,
		TotalTokens:      g.stats.TotalTokens,
	}
}

// Finish records the end time. Later calls keep the first end time.
func (g *GenerationContext) Finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stats.EndTime == nil {
		end := g.now()
		g.stats.EndTime = &end
	}
}

// Stats returns a copy of the generation statistics.
func (g *GenerationContext) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.stats
	s.ToolsUsed = maps.Clone(g.stats.ToolsUsed)
	s.ToolStats = maps.Clone(g.stats.ToolStats)
	s.StagesCompleted = slices.Clone(g.stats.StagesCompleted)
	s.ErrorsEncountered = slices.Clone(g.stats.ErrorsEncountered)
	return s
}

// Duration is the time from start to Finish, or to now while running.
func (g *GenerationContext) Duration() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	end := g.now()
	if g.stats.EndTime != nil {
		end = *g.stats.EndTime
	}
	return end.Sub(g.stats.StartTime)
}

// Summary returns a JSON-friendly overview of the generation.
func (g *GenerationContext) Summary() map[string]any {
	stats := g.Stats()
	duration := g.Duration()

	g.mu.RLock()
	stages := maps.Clone(g.stages)
	g.mu.RUnlock()

	return map[string]any{
		"generation_id":    g.id,
		"document_source":  g.source,
		"duration_seconds": duration.Seconds(),
		"stage_status":     stages,
		"total_api_calls":  stats.TotalAPICalls,
		"token_usage": api.Usage{
			PromptTokens:     stats.PromptTokens,
			CompletionTokens: stats.CompletionTokens,
			TotalTokens:      stats.TotalTokens,
		},
		"tools_used":         stats.ToolsUsed,
		"stages_completed":   stats.StagesCompleted,
		"errors_encountered": len(stats.ErrorsEncountered),
	}
}

type generationIDKey struct{}

// WithGenerationID makes the next generation started with ctx use id,
// typically the ID of the task running it.
func WithGenerationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, generationIDKey{}, id)
}

func generationID(ctx context.Context) string {
	id, _ := ctx.Value(generationIDKey{}).(string)
	return id
}
