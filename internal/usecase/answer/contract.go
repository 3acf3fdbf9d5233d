package answer

import (
	"context"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

// Completer generates the grounded answer text.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Retriever produces compressed context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.ContextItem, error)
}
