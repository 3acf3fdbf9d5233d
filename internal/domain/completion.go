package domain

import "context"

// CompletionRequest is a single-turn chat completion call.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completer is the language model boundary used for query expansion,
// relevance compression, and answer synthesis. Implementations decode
// deterministically (temperature 0).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
