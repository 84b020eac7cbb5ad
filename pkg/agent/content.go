package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/extract"
	"github.com/rhuss/slidewright/pkg/provider"
)

const contentInstructions = `You are a presentation content specialist. Your job is to transform slide
structures into detailed, compelling slide content.

For each slide:
1. Create detailed content that expands on the provided content tokens
2. Format content according to format tokens (bullet points, tables, etc.)
3. Add presenter notes to help the presenter deliver the slide
4. Maintain a consistent tone and style throughout the presentation

Keep content concise and focused. Use markdown formatting where appropriate.
Create visually balanced slides that follow good presentation principles.

The content should be engaging, clear, and professional. Avoid jargon unless
it's appropriate for the target audience.

For HTML content, use basic HTML tags like <h1>, <h2>, <p>, <ul>, <li>, etc.`

const (
	defaultFormatHint = "Use appropriate formatting for the content"
	defaultDesignHint = "Keep the design clean and professional"
)

// ContentAgent writes the content and notes of individual slides.
type ContentAgent struct {
	Agent
}

// NewContentAgent returns the content agent. An empty model defers to
// the provider default.
func NewContentAgent(model string) *ContentAgent {
	return &ContentAgent{Agent{
		Name:         "content",
		Instructions: contentInstructions,
		Model:        model,
		Temperature:  0.3,
		TopP:         DefaultTopP,
		SchemaName:   "slide_content",
		Schema:       SlideSchema,
	}}
}

// SlidePrompt builds the content prompt for one planned slide.
func SlidePrompt(slide api.SlideStructure, relevant string) string {
	format := defaultFormatHint
	if len(slide.FormatTokens) > 0 {
		format = strings.Join(slide.FormatTokens, ", ")
	}
	design := defaultDesignHint
	if len(slide.DesignTokens) > 0 {
		design = strings.Join(slide.DesignTokens, ", ")
	}

	return fmt.Sprintf(`Generate detailed content for slide %d: '%s'

Content should incorporate these key points:
%s

Format guidelines:
%s

Design elements to consider:
%s

Relevant document content:
%s

Please generate HTML content for the slide and helpful presenter notes.`,
		slide.SlideNumber, slide.Title,
		strings.Join(slide.ContentTokens, ", "),
		format, design, relevant)
}

// GenerateSlideContent produces the content of one slide. Number and title
// fall back to the planned values when the model omits them.
func (a *ContentAgent) GenerateSlideContent(ctx context.Context, p provider.Provider, slide api.SlideStructure, relevant string, st State) (*api.SlideContent, error) {
	sc, err := Run[api.SlideContent](ctx, &a.Agent, p, SlidePrompt(slide, relevant), st)
	if err != nil {
		return nil, err
	}
	if sc.SlideNumber == 0 {
		sc.SlideNumber = slide.SlideNumber
	}
	if strings.TrimSpace(sc.Title) == "" {
		sc.Title = slide.Title
	}
	return sc, nil
}

// SlideOptions control GenerateSlides.
type SlideOptions struct {
	// Concurrency is the number of slides generated at once. Values below
	// one mean sequential generation.
	Concurrency int

	// OnSlide is called after each slide finishes with the number of
	// slides done so far and the total. Calls are serialized.
	OnSlide func(done, total int)
}

// GenerateSlides runs the content agent for every slide in plan and returns
// the presentation in plan order. The first failing slide cancels the rest.
func (a *ContentAgent) GenerateSlides(ctx context.Context, p provider.Provider, plan *api.PresentationPlan, text string, st State, opts SlideOptions) (*api.Presentation, error) {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	slides := make([]api.SlideContent, len(plan.Slides))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range plan.Slides {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sc, err := a.GenerateSlideContent(gctx, p, s, extract.FindRelevant(text, s.Title), st)
			if err != nil {
				return fmt.Errorf("slide %d (%s): %w", s.SlideNumber, s.Title, err)
			}
			slides[i] = *sc

			if opts.OnSlide != nil {
				mu.Lock()
				done++
				opts.OnSlide(done, len(plan.Slides))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &api.Presentation{
		Title:  plan.Title,
		Theme:  plan.Theme,
		Slides: slides,
	}, nil
}
