// Package summarize turns a filing change set into per-section narrative
// using an LLM provider, with token and cost accounting.
package summarize

import "context"

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Completion is one raw model response with usage accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Config holds provider configuration.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
}
