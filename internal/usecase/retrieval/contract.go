package retrieval

import (
	"context"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer generates text for query expansion and context compression.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// IndexRepo defines the vector index contract for retrieval.
type IndexRepo interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.Hit, error)
}
