package domain

import "context"

// EmbeddingResult carries one embedding vector with provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. The same model must serve ingestion and query
// time: indexed vectors and query vectors have to share an embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error)
}
