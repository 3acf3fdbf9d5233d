package ingest

import (
	"context"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

// BlobStore persists the raw uploaded file encrypted at rest.
type BlobStore interface {
	Store(filename string, data []byte) (string, error)
}

// Extractor converts an uploaded file into plain text.
type Extractor interface {
	Text(filename string, data []byte) string
}

// Splitter cuts extracted text into overlapping chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder vectorizes chunk texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error)
}

// IndexRepo defines the vector index contract for ingestion.
type IndexRepo interface {
	EnsureCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteBySourceFile(ctx context.Context, sourceFile string) error
}
