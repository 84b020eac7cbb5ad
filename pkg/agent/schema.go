package agent

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

// PlanSchema is the JSON schema of api.PresentationPlan.
var PlanSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{"type": "string"},
		"theme": map[string]any{
			"type":        "string",
			"description": "Overall style, e.g. business, educational, creative",
		},
		"slides": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"slide_number":   map[string]any{"type": "integer"},
					"title":          map[string]any{"type": "string"},
					"content_tokens": stringList("Key points the slide must cover"),
					"format_tokens":  stringList("How the content should be structured"),
					"design_tokens":  stringList("Visual elements to include"),
				},
				"required": []string{"slide_number", "title", "content_tokens", "format_tokens", "design_tokens"},
			},
		},
	},
	"required": []string{"title", "theme", "slides"},
}

// SlideSchema is the JSON schema of api.SlideContent.
var SlideSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"slide_number": map[string]any{"type": "integer"},
		"title":        map[string]any{"type": "string"},
		"content": map[string]any{
			"type":        "string",
			"description": "Slide body as HTML",
		},
		"notes": map[string]any{
			"type":        "string",
			"description": "Presenter notes",
		},
	},
	"required": []string{"slide_number", "title", "content", "notes"},
}
