package domain

import (
	"fmt"
	"strings"
)

// SentinelChunkText is indexed in place of a document that yielded no text,
// so every ingested file has at least one retrievable entry.
const SentinelChunkText = "[NO TEXT EXTRACTED]"

// DefaultUploader is recorded when no uploader name was supplied.
const DefaultUploader = "unknown"

// ChunkKey identifies a chunk by its source file and ordinal position.
// The string form is only produced at the storage boundary.
type ChunkKey struct {
	SourceFile string
	Ordinal    int
}

// String formats the key as "<filename>__chunk_<ordinal>".
func (k ChunkKey) String() string {
	return fmt.Sprintf("%s__chunk_%d", k.SourceFile, k.Ordinal)
}

// Chunk is a bounded text segment of one document, the unit of embedding
// and retrieval (immutable value object).
type Chunk struct {
	key       ChunkKey
	text      string
	vector    []float32
	uploader  string
	createdAt int64
}

// NewChunk validates and creates a Chunk. CreatedAt is unix seconds and is
// set once at ingestion; the retention sweeper relies on its ordering.
func NewChunk(key ChunkKey, text, uploader string, createdAt int64) (Chunk, error) {
	if key.SourceFile == "" {
		return Chunk{}, fmt.Errorf("source file is required: %w", ErrInvalidChunk)
	}
	if strings.Contains(key.SourceFile, "__chunk_") {
		return Chunk{}, fmt.Errorf("source file %q collides with the chunk id format: %w", key.SourceFile, ErrInvalidChunk)
	}
	if key.Ordinal < 0 {
		return Chunk{}, fmt.Errorf("ordinal must be non-negative: %w", ErrInvalidChunk)
	}
	if text == "" {
		return Chunk{}, fmt.Errorf("text is required: %w", ErrInvalidChunk)
	}
	if createdAt <= 0 {
		return Chunk{}, fmt.Errorf("created_at must be positive: %w", ErrInvalidChunk)
	}
	if uploader == "" {
		uploader = DefaultUploader
	}
	return Chunk{key: key, text: text, uploader: uploader, createdAt: createdAt}, nil
}

// ReconstructChunk creates a Chunk without validation (storage hydration).
func ReconstructChunk(key ChunkKey, text, uploader string, createdAt int64, vector []float32) Chunk {
	return Chunk{key: key, text: text, uploader: uploader, createdAt: createdAt, vector: vector}
}

// Key returns the structured chunk identifier.
func (c *Chunk) Key() ChunkKey { return c.key }

// ID returns the storage-boundary string form of the key.
func (c *Chunk) ID() string { return c.key.String() }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding vector.
func (c *Chunk) Vector() []float32 { return c.vector }

// Uploader returns the uploader name.
func (c *Chunk) Uploader() string { return c.uploader }

// CreatedAt returns the ingestion timestamp in unix seconds.
func (c *Chunk) CreatedAt() int64 { return c.createdAt }

// SetVector sets the embedding vector in place.
func (c *Chunk) SetVector(v []float32) { c.vector = v }
