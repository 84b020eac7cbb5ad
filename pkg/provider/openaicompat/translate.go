package openaicompat

import (
	"github.com/rhuss/slidewright/pkg/provider"
)

// TranslateToChat converts a provider.Request into a ChatCompletionRequest
// suitable for the /v1/chat/completions endpoint.
func TranslateToChat(req *provider.Request) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		N:           1,
	}

	if req.Instructions != "" {
		cr.Messages = append(cr.Messages, ChatMessage{Role: "system", Content: req.Instructions})
	}
	cr.Messages = append(cr.Messages, ChatMessage{Role: "user", Content: req.Prompt})

	if req.Schema != nil {
		cr.ResponseFormat = &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
			},
		}
	}

	return cr
}
