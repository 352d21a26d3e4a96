package ai

import (
	"context"
	"errors"
)

// Errors the caller must handle uniformly: each maps to a user-visible
// inline message, never an unhandled failure.
var (
	// ErrNoCredentials means no API key is configured for the feature.
	ErrNoCredentials = errors.New("ai: api key not configured")
	// ErrEmptyResponse means the model returned no usable text.
	ErrEmptyResponse = errors.New("ai: empty response")
)

// APIError carries the explicit error field of a gateway response, distinct
// from transport-level failure.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "ai: " + e.Message
}

// Blob is an inline file attachment.
type Blob struct {
	MimeType string
	Data     string // base64, no data-URL prefix
}

// Part is one piece of a turn: text or inline data.
type Part struct {
	Text       string
	InlineData *Blob
}

// Turn is one message of a structured history, tagged with the gateway's
// role vocabulary ("user" or "model").
type Turn struct {
	Role  string
	Parts []Part
}

// Request describes one completion call.
type Request struct {
	Turns             []Turn
	SystemInstruction string
	Temperature       float64
	// DeepReasoning enables the model's thinking budget and returns a
	// separate reasoning trace. Off by default to keep latency down.
	DeepReasoning bool
	// WebSearch enables search-grounded answers.
	WebSearch bool
}

// Response is one completion. Thinking is the optional reasoning trace,
// kept apart from the visible text.
type Response struct {
	Text     string
	Thinking string
}

// Generator produces one completion per call. Components depend on this
// interface; tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// UserText builds a single-turn request from plain text.
func UserText(text string) []Turn {
	return []Turn{{Role: "user", Parts: []Part{{Text: text}}}}
}
