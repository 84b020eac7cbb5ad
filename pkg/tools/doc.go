// Package tools exposes the document helpers and the generation service as
// Model Context Protocol tools. The server is mounted on the HTTP API at
// /mcp using the streamable HTTP transport, so agents can extract
// structure from documents or generate decks without the REST routes.
package tools
