// Package genai provides the generative-language backend boundary.
//
// The Backend interface is the only surface the content pipeline sees; the
// production implementation talks to Gemini through langchaingo. Backends
// may fail or return malformed output, and callers are expected to recover
// with static fallback content rather than surfacing the failure.
package genai

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the backend returned no usable text.
var ErrEmptyResponse = errors.New("genai: empty response")

// Request describes a single generation call.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSONOutput asks for constrained JSON output when the backend
	// supports it. The response is still validated by the caller.
	JSONOutput bool
}

// Usage carries token accounting reported by the backend. Fields are zero
// when the backend does not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the outcome of a successful generation call.
type Result struct {
	Text  string
	Usage Usage
}

// Backend generates text from a prompt.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
