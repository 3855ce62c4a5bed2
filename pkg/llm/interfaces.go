// Package llm provides clients for external text-generation endpoints.
package llm

import "context"

// Client is the interface for chat-completion calls. The pipeline uses one
// client for generation and one for guardrail classification; both may point
// at the same endpoint. Use this interface for dependency injection to
// enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion for the given prompt.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Compile-time interface checks.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
