// Package generate produces answer text from assembled prompts via
// cloud LLM providers, with ordered fallback between them.
package generate

import "context"

// Prompt is an assembled generation request: a system persona and the
// user-facing content (question plus curriculum context).
type Prompt struct {
	System string
	User   string
}

// Generator is a single answer-generation provider.
type Generator interface {
	// Name identifies the provider (e.g. "openai", "gemini").
	Name() string

	// Generate returns the answer text for the prompt.
	Generate(ctx context.Context, p Prompt) (string, error)
}
