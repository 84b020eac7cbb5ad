package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/slidewright/pkg/api"
)

func TestGenerationContextStages(t *testing.T) {
	g := NewGenerationContext("gen-1", "text")

	if got := g.StageStatus(StagePlanning); got != api.StageNotStarted {
		t.Errorf("untouched stage = %q, want %q", got, api.StageNotStarted)
	}

	g.StartStage(StageAnalysis)
	if got := g.StageStatus(StageAnalysis); got != api.StageInProgress {
		t.Errorf("started stage = %q, want %q", got, api.StageInProgress)
	}
	g.CompleteStage(StageAnalysis)
	g.CompleteStage(StageAnalysis)
	g.StartStage(StagePlanning)
	g.FailStage(StagePlanning, errors.New("backend down"))

	if got := g.StageStatus(StagePlanning); got != api.StageFailed {
		t.Errorf("failed stage = %q, want %q", got, api.StageFailed)
	}

	stats := g.Stats()
	if diff := cmp.Diff([]string{StageAnalysis}, stats.StagesCompleted); diff != "" {
		t.Errorf("StagesCompleted mismatch (-want +got):\n%s", diff)
	}
	if len(stats.ErrorsEncountered) != 1 {
		t.Fatalf("ErrorsEncountered = %d, want 1", len(stats.ErrorsEncountered))
	}
	if e := stats.ErrorsEncountered[0]; e.Stage != StagePlanning || e.Error != "backend down" {
		t.Errorf("recorded error = %+v", e)
	}
}

func TestGenerationContextConcurrentUpdates(t *testing.T) {
	g := NewGenerationContext("", "text")
	if g.ID() == "" {
		t.Fatal("expected a generated ID")
	}

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordAPICall()
			g.RecordTokenUsage(api.Usage{PromptTokens: 3, CompletionTokens: 2})
			g.RecordTool("extract_key_points", 10)
			g.Increment("calls")
		}()
	}
	wg.Wait()

	stats := g.Stats()
	if stats.TotalAPICalls != workers {
		t.Errorf("TotalAPICalls = %d, want %d", stats.TotalAPICalls, workers)
	}
	want := api.Usage{PromptTokens: 3 * workers, CompletionTokens: 2 * workers, TotalTokens: 5 * workers}
	if diff := cmp.Diff(want, g.Usage()); diff != "" {
		t.Errorf("Usage mismatch (-want +got):\n%s", diff)
	}
	if stats.ToolsUsed["extract_key_points"] != workers {
		t.Errorf("ToolsUsed = %v", stats.ToolsUsed)
	}
	if ts := stats.ToolStats["extract_key_points"]; ts.Characters != 10*workers {
		t.Errorf("ToolStats = %+v", ts)
	}
	if v, _ := g.Get("calls"); v != workers {
		t.Errorf("Get(calls) = %v, want %d", v, workers)
	}
}

func TestGenerationContextStatsAreCopies(t *testing.T) {
	g := NewGenerationContext("gen-1", "text")
	g.RecordTool("analyze_document", 5)
	stats := g.Stats()
	stats.ToolsUsed["analyze_document"] = 99

	if got := g.Stats().ToolsUsed["analyze_document"]; got != 1 {
		t.Errorf("internal ToolsUsed changed through copy: %d", got)
	}
}

func TestGenerationContextSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	g := NewGenerationContext("gen-1", "notes.md")
	g.now = func() time.Time { return now }
	g.stats.StartTime = start

	g.SetAgentOutput("planning", "plan")
	if v, ok := g.AgentOutput("planning"); !ok || v != "plan" {
		t.Errorf("AgentOutput = %v, %v", v, ok)
	}
	g.CompleteStage(StageAnalysis)

	now = start.Add(1500 * time.Millisecond)
	g.Finish()
	now = start.Add(time.Hour)
	g.Finish()

	s := g.Summary()
	if s["generation_id"] != "gen-1" || s["document_source"] != "notes.md" {
		t.Errorf("identity fields = %v, %v", s["generation_id"], s["document_source"])
	}
	if s["duration_seconds"] != 1.5 {
		t.Errorf("duration_seconds = %v, want 1.5", s["duration_seconds"])
	}
	stages := s["stage_status"].(map[string]api.StageStatus)
	if stages[StageAnalysis] != api.StageCompleted {
		t.Errorf("stage_status = %v", stages)
	}
}
