// Package openaicompat implements provider.Provider for OpenAI-compatible
// Chat Completions backends (OpenAI, vLLM, LiteLLM, local mocks). Replies are
// requested as structured JSON through response_format json_schema.
package openaicompat
