// Package agent implements the two LLM-backed stages of deck generation.
// The planning agent turns document text into a PresentationPlan; the
// content agent turns each planned slide into HTML content and speaker
// notes. Both request structured JSON from a provider.Provider and decode
// it with Run.
package agent
