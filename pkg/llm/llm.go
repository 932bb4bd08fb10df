// Package llm abstracts the language-model capability used by protoscribe.
//
// Two invocation modes are exposed:
//
//   - GenerateStream: free-form text completion delivered as an ordered
//     stream of chunks.
//   - Invoke: schema-constrained completion that returns the raw JSON for a
//     declared output [Shape], or fails.
//
// Backends are provided for OpenAI-compatible APIs and Google Gemini. A
// [Mux] routes named models to registered backends so that the classifier,
// the chat agent, and the synthesis pipeline can each be bound to a
// different model from configuration.
package llm

import (
	"context"
	"iter"
)

// Stream is an ordered sequence of generated chunks. Next blocks until a
// chunk is available and returns a *State error (ErrDone et al.) when the
// generation terminates.
type Stream interface {
	Next() (*Chunk, error)
	Close() error
	CloseWithError(error) error
}

// ModelParams tunes a single completion request.
type ModelParams struct {
	MaxTokens   int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitzero" yaml:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitzero" yaml:"top_p,omitempty"`
}

// Prompt is a named system/developer instruction block.
type Prompt struct {
	Name string
	Text string
}

// ModelContext is the full input of one model call: instruction prompts,
// the conversation messages, and optional parameter overrides.
type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]

	Params() *ModelParams
}

// Generator is a language-model backend.
type Generator interface {
	// GenerateStream issues a free-form completion and streams the result.
	GenerateStream(ctx context.Context, model string, mctx ModelContext) (Stream, error)

	// Invoke issues a schema-constrained completion for the given shape and
	// returns the raw JSON text of the result. The caller decodes it with
	// [Decode], which tolerates minor malformations.
	Invoke(ctx context.Context, model string, mctx ModelContext, shape *Shape) (Usage, string, error)
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokenCount    int64
	GeneratedTokenCount int64
}
