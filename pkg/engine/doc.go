// Package engine runs the two-stage presentation pipeline.
//
// [Engine] takes document text through analysis, extraction, planning,
// per-slide content generation and post-processing, recording progress and
// cost in a [GenerationContext] shared with the agents. [Service] wraps the
// engine with request validation, the result cache and file extraction, and
// is what the HTTP handlers, the task manager and the MCP server call.
package engine
