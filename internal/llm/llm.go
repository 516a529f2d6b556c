// Package llm wraps the text-generation backend behind a small interface so
// the companion engine can run against Ark in production and a mock locally.
package llm

import "context"

// Turn is one prior conversational exchange handed to the model as history.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// Generator produces an assistant reply from a fully-assembled context.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, userMessage string) (string, error)
}
