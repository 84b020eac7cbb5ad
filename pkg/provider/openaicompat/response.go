package openaicompat

import (
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/provider"
)

// TranslateResponse converts a ChatCompletionResponse into a provider.Response.
// Only choices[0] is used. A reply without choices or text is a model error.
func TranslateResponse(resp *ChatCompletionResponse) (*provider.Response, error) {
	pr := &provider.Response{Model: resp.Model}

	if resp.Usage != nil {
		pr.Usage = api.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return nil, api.NewModelError("backend returned no choices")
	}

	choice := resp.Choices[0]
	pr.FinishReason = choice.FinishReason
	pr.Content = ExtractContentString(choice.Message.Content)

	if pr.Content == "" {
		if choice.FinishReason == "length" {
			return nil, api.NewModelError("backend reply was truncated before any content was produced")
		}
		return nil, api.NewModelError("backend returned empty content")
	}

	return pr, nil
}

// ExtractContentString extracts text from a Chat Completions message content
// field, which may be a string or an array of content parts.
func ExtractContentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	}
	return ""
}
