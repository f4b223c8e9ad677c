// Package llm talks to the language model used for document classification.
package llm

import "context"

// Provider answers completion requests against one model backend. The
// metadata extractor is the only caller; it always asks for JSON mode.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend in logs and errors.
	Name() string
}
