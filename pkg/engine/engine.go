package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/slidewright/pkg/agent"
	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/document"
	"github.com/rhuss/slidewright/pkg/extract"
	"github.com/rhuss/slidewright/pkg/provider"
	"github.com/rhuss/slidewright/pkg/render"
)

// ProgressFunc receives progress in [0, 1] and a human readable message.
type ProgressFunc func(progress float64, message string)

func (f ProgressFunc) report(progress float64, message string) {
	if f != nil {
		f(progress, message)
	}
}

// Engine runs the planning and content agents against one provider.
type Engine struct {
	provider provider.Provider
	planner  *agent.PlanningAgent
	writer   *agent.ContentAgent
	cfg      Config
}

// New creates a new Engine. The provider must not be nil.
func New(p provider.Provider, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	return &Engine{
		provider: p,
		planner:  agent.NewPlanningAgent(cfg.Model),
		writer:   agent.NewContentAgent(cfg.Model),
		cfg:      cfg,
	}, nil
}

// Provider returns the backend the engine calls.
func (e *Engine) Provider() provider.Provider { return e.provider }

// Ready reports whether the provider can be called: either it needs no
// API key or one was configured.
func (e *Engine) Ready() bool {
	return e.cfg.KeyConfigured || !e.provider.Capabilities().RequiresAPIKey
}

// Model returns the model name a generation with opts will request.
func (e *Engine) Model(opts api.GenerationOptions) string {
	switch {
	case opts.Model != "":
		return opts.Model
	case e.cfg.Model != "":
		return e.cfg.Model
	}
	return e.provider.Capabilities().DefaultModel
}

// Generate turns text into a presentation. Stage progress is recorded in
// gctx and reported through progress, which may be nil.
func (e *Engine) Generate(ctx context.Context, gctx *GenerationContext, text string, opts api.GenerationOptions, progress ProgressFunc) (*api.Presentation, error) {
	defer gctx.Finish()

	planner, writer := e.planner, e.writer
	if opts.Model != "" && opts.Model != e.cfg.Model {
		p, w := *e.planner, *e.writer
		p.Model, w.Model = opts.Model, opts.Model
		planner, writer = &p, &w
	}

	log := slog.With("generation_id", gctx.ID())

	// Analysis.
	progress.report(0.1, "Processing document")
	gctx.StartStage(StageAnalysis)
	stats := document.Analyze(text)
	gctx.SetDocument(text, stats)
	gctx.CompleteStage(StageAnalysis)

	// Extraction.
	progress.report(0.2, "Extracting content elements")
	gctx.StartStage(StageExtraction)
	content := extract.Extract(text)
	gctx.SetExtracted("sections", content.Sections)
	gctx.SetExtracted("bullet_points", content.Bullets)
	gctx.SetExtracted("keywords", content.Keywords)
	gctx.CompleteStage(StageExtraction)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Planning.
	progress.report(0.4, "Creating presentation plan")
	gctx.StartStage(StagePlanning)
	plan, err := planner.Plan(ctx, e.provider, text, opts, gctx)
	if err != nil {
		return nil, e.fail(gctx, StagePlanning, err)
	}
	if opts.MaxSlides > 0 && len(plan.Slides) > opts.MaxSlides {
		log.Debug("truncating plan", "planned", len(plan.Slides), "max_slides", opts.MaxSlides)
		plan.Slides = plan.Slides[:opts.MaxSlides]
	}
	if opts.Theme != "" && plan.Theme == "" {
		plan.Theme = opts.Theme
	}
	gctx.SetAgentOutput(planner.Name, plan)
	gctx.CompleteStage(StagePlanning)

	// Content.
	progress.report(0.6, "Generating slide content")
	gctx.StartStage(StageContent)
	pres, err := writer.GenerateSlides(ctx, e.provider, plan, text, gctx, agent.SlideOptions{
		Concurrency: e.cfg.concurrency(),
		OnSlide: func(done, total int) {
			progress.report(0.6+0.3*float64(done)/float64(total), "Generating slide content")
		},
	})
	if err != nil {
		return nil, e.fail(gctx, StageContent, err)
	}
	gctx.SetAgentOutput(writer.Name, pres)
	gctx.CompleteStage(StageContent)

	// Post-processing.
	progress.report(0.9, "Finalizing presentation")
	gctx.StartStage(StageFinalize)
	if err := finalize(pres); err != nil {
		return nil, e.fail(gctx, StageFinalize, err)
	}
	gctx.CompleteStage(StageFinalize)

	usage := gctx.Usage()
	log.Info("presentation generated",
		"slides", len(pres.Slides),
		"api_calls", gctx.Stats().TotalAPICalls,
		"total_tokens", usage.TotalTokens,
		"duration", gctx.Duration(),
	)
	return pres, nil
}

func (e *Engine) fail(gctx *GenerationContext, stage string, err error) error {
	gctx.FailStage(stage, err)
	slog.Warn("generation stage failed", "generation_id", gctx.ID(), "stage", stage, "error", err)
	return fmt.Errorf("%s stage: %w", stage, err)
}

// finalize renders and sanitizes slide content and numbers slides 1..n.
func finalize(p *api.Presentation) error {
	for i := range p.Slides {
		s := &p.Slides[i]
		html, err := render.NormalizeSlide(s.Content)
		if err != nil {
			return fmt.Errorf("slide %d: %w", i+1, err)
		}
		s.Content = html
		s.SlideNumber = i + 1
	}
	return nil
}
