package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

const planningInstructions = `You are a presentation planning specialist. Your job is to analyze a document and
create an optimal presentation structure from it.

For each presentation:
1. Extract a clear title based on the document content
2. Determine an appropriate theme (business, educational, creative, etc.)
3. Break down the content into logical slides
4. For each slide, provide:
   - A clear, concise title
   - Key content tokens (important points to include)
   - Format tokens (how content should be structured)
   - Design tokens (visual elements to include)

Keep slides focused on a single topic or point.
Aim for 5-10 slides for most presentations (can vary based on content).
Organize slides in a logical flow.

The presentation should tell a cohesive story from beginning to end.`

// PlanningAgent turns document text into a PresentationPlan.
type PlanningAgent struct {
	Agent
}

// NewPlanningAgent returns the planning agent. An empty model defers to
// the provider default.
func NewPlanningAgent(model string) *PlanningAgent {
	return &PlanningAgent{Agent{
		Name:         "planning",
		Instructions: planningInstructions,
		Model:        model,
		Temperature:  0.2,
		TopP:         DefaultTopP,
		SchemaName:   "presentation_plan",
		Schema:       PlanSchema,
	}}
}

// Plan asks the model for a presentation plan of text. Theme, audience and
// slide limit hints from opts are added to the prompt.
func (a *PlanningAgent) Plan(ctx context.Context, p provider.Provider, text string, opts api.GenerationOptions, st State) (*api.PresentationPlan, error) {
	plan, err := Run[api.PresentationPlan](ctx, &a.Agent, p, a.prompt(text, opts, st), st)
	if err != nil {
		return nil, err
	}
	if len(plan.Slides) == 0 {
		return nil, api.NewModelError("planning agent returned no slides")
	}
	if strings.TrimSpace(plan.Title) == "" {
		return nil, api.NewModelError("planning agent returned no title")
	}
	return plan, nil
}

func (a *PlanningAgent) prompt(text string, opts api.GenerationOptions, st State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a presentation structure from this document:\n\n%s\n\n", text)

	if points := ExtractKeyPointsWithContext(st, text); points != "" {
		fmt.Fprintf(&b, "Key points identified in the document:\n%s\n\n", points)
	}
	if opts.Theme != "" {
		fmt.Fprintf(&b, "Preferred theme: %s\n", opts.Theme)
	}
	if opts.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", opts.Audience)
	}
	if opts.MaxSlides > 0 {
		fmt.Fprintf(&b, "Use at most %d slides.\n", opts.MaxSlides)
	}

	b.WriteString("\nAnalyze the content carefully and identify the key points that should be\n" +
		"included in the presentation. Follow a logical structure that best conveys\n" +
		"the message of the document.")
	return b.String()
}
