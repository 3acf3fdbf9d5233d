package domain

// Hit is a single nearest-neighbor match from the vector index.
type Hit struct {
	Chunk Chunk
	Score float64
}

// ContextItem is a retrieved (and possibly compressed) passage ready for
// prompt assembly.
type ContextItem struct {
	Text       string
	SourceFile string
	ChunkIndex int
	Uploader   string
	Score      float64
}
