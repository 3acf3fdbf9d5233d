package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/logger"
	"github.com/inscribe-ai/inscribe/internal/metrics"
)

// Receipt summarizes a completed ingestion.
type Receipt struct {
	File        string `json:"file"`
	ChunksAdded int    `json:"chunks_added"`
}

// Service runs the ingestion pipeline: encrypt and store the original file,
// extract text, split into chunks, embed, and write to the vector index.
type Service struct {
	blobs    BlobStore
	extract  Extractor
	splitter Splitter
	embedder Embedder
	index    IndexRepo
	now      func() time.Time
}

// New creates an ingestion service.
func New(blobs BlobStore, extract Extractor, splitter Splitter, embedder Embedder, index IndexRepo) *Service {
	return &Service{
		blobs:    blobs,
		extract:  extract,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest processes one uploaded file. The encrypted blob is written before
// any indexing happens, so the original survives even if indexing fails.
// If the index write fails partway, all chunks of the file are removed so
// re-upload starts clean.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte, uploader string) (Receipt, error) {
	log := logger.FromContext(ctx)

	if filename == "" {
		return Receipt{}, fmt.Errorf("empty filename: %w", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return Receipt{}, fmt.Errorf("empty file %q: %w", filename, domain.ErrInvalidInput)
	}

	if _, err := s.blobs.Store(filename, data); err != nil {
		return Receipt{}, fmt.Errorf("store blob: %w", err)
	}

	text := s.extract.Text(filename, data)
	pieces := s.splitter.Split(text)

	createdAt := s.now().Unix()
	chunks := make([]domain.Chunk, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		chunk, err := domain.NewChunk(
			domain.ChunkKey{SourceFile: filename, Ordinal: i},
			piece, uploader, createdAt,
		)
		if err != nil {
			return Receipt{}, fmt.Errorf("build chunk %d: %w", i, err)
		}
		chunks = append(chunks, chunk)
		texts = append(texts, piece)
	}

	results, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Receipt{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(results) != len(chunks) {
		return Receipt{}, fmt.Errorf(
			"embedder returned %d vectors for %d chunks: %w",
			len(results), len(chunks), domain.ErrEmbeddingProviderError,
		)
	}
	for i := range chunks {
		chunks[i].SetVector(results[i].Embedding)
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		return Receipt{}, fmt.Errorf("ensure collection: %w", err)
	}

	if err := s.index.UpsertChunks(ctx, chunks); err != nil {
		if delErr := s.index.DeleteBySourceFile(ctx, filename); delErr != nil {
			log.Error("rollback after failed upsert",
				zap.String("file", filename), zap.Error(delErr))
		}
		return Receipt{}, fmt.Errorf("index chunks: %w", err)
	}

	metrics.IngestedChunksTotal.Add(float64(len(chunks)))
	log.Info("file ingested",
		zap.String("file", filename),
		zap.String("uploader", uploader),
		zap.Int("chunks", len(chunks)),
	)

	return Receipt{File: filename, ChunksAdded: len(chunks)}, nil
}
