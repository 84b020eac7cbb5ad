// Package provider defines the interface for LLM backends used by the
// generation agents. Each adapter (openaicompat, gemini) handles its own
// wire protocol and maps backend failures onto api.APIError values, so the
// agents and the engine never see protocol details.
package provider
