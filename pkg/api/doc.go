// Package api defines the wire types shared by every slidewright component:
// presentation plans and decks, generation requests and responses, task
// status values and their state machine, progress events, and the
// structured error envelope returned to HTTP clients.
//
// The package performs no I/O. All types marshal to the JSON shapes the
// HTTP API accepts and returns.
//
// Core types:
//   - [PresentationPlan]: Output of the planning agent, one [SlideStructure] per slide
//   - [Presentation]: Finished deck, one [SlideContent] per slide
//   - [GenerationRequest]: Client request for a new deck
//   - [TaskStatus]: Lifecycle of an asynchronous generation
//   - [APIError]: Structured error with type, code, param, and message
package api
