package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inscribe-ai/inscribe/internal/db"
	"github.com/inscribe-ai/inscribe/internal/domain"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchIDs(ctx context.Context, index, query string, limit int) ([]string, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo is the durable chunk index over a single RediSearch collection.
type Repo struct {
	store      store
	collection string
	vectorDim  int
	hnsw       HNSWConfig
}

// New creates a chunk index repository.
func New(s store, collection string, vectorDim int) *Repo {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	if vectorDim <= 0 {
		vectorDim = domain.DefaultVectorDim
	}
	return &Repo{store: s, collection: collection, vectorDim: vectorDim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureCollection creates the FT index if it does not exist yet. Concurrent
// callers racing on a cold start all succeed: the first FT.CREATE wins and
// "index already exists" is treated as success.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.keyPrefix()},
		Fields: []db.IndexField{
			{Name: fieldContent, Type: db.IndexFieldText},
			{Name: fieldSourceFile, Alias: "source_file", Type: db.IndexFieldTag},
			{Name: fieldChunkIndex, Alias: "chunk_index", Type: db.IndexFieldNumeric},
			{Name: fieldUploader, Alias: "uploader", Type: db.IndexFieldTag},
			{Name: fieldCreatedAt, Alias: "created_at", Type: db.IndexFieldNumeric},
			{
				Name:              fieldVector,
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Exists reports whether the collection index exists.
func (r *Repo) Exists(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", r.indexName(), err)
	}
	return ok, nil
}

// UpsertChunks writes a file's chunk set in one pipelined batch. Existing
// ids are overwritten, which makes re-ingestion of an unchanged file
// idempotent; stale chunks of the same source files beyond the new set are
// purged so a shorter re-ingestion leaves no orphaned ordinals.
func (r *Repo) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stale, err := r.staleChunkKeys(ctx, chunks)
	if err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Vector()) != r.vectorDim {
			return fmt.Errorf(
				"chunk %s: got %d dimensions, want %d: %w",
				c.ID(), len(c.Vector()), r.vectorDim, domain.ErrVectorDimMismatch,
			)
		}
		items[i] = db.HashSetItem{Key: r.chunkKey(c.ID()), Fields: buildHashFields(c)}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(items), err)
	}

	if len(stale) > 0 {
		if err := r.store.DelMulti(ctx, stale); err != nil {
			return fmt.Errorf("purge %d stale chunks: %w", len(stale), err)
		}
	}
	return nil
}

// DeleteByIDs removes chunks by their string ids in one batch.
func (r *Repo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.chunkKey(id)
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete %d chunks: %w", len(ids), err)
	}
	return nil
}

// DeleteBySourceFile removes every chunk of one source file (ingestion rollback).
func (r *Repo) DeleteBySourceFile(ctx context.Context, sourceFile string) error {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+escapeGlob(sourceFile)+"__chunk_*")
	if err != nil {
		return fmt.Errorf("scan chunks of %s: %w", sourceFile, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", sourceFile, err)
	}
	return nil
}

// Query returns the k nearest chunks by cosine similarity, highest first.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	if len(vector) != r.vectorDim {
		return nil, fmt.Errorf(
			"query vector: got %d dimensions, want %d: %w",
			len(vector), r.vectorDim, domain.ErrVectorDimMismatch,
		)
	}

	q := &db.KNNQuery{
		IndexName: r.indexName(),
		Vector:    vector,
		K:         k,
		ReturnFields: []string{
			fieldContent, fieldSourceFile, fieldChunkIndex,
			fieldUploader, fieldCreatedAt, "__vector_score",
		},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("search knn %s: %w", r.collection, err)
	}

	return r.parseHits(sr), nil
}

// FindOlderThan returns the ids of chunks with created_at strictly below
// threshold (unix seconds). A missing collection yields ErrCollectionNotFound.
func (r *Repo) FindOlderThan(ctx context.Context, threshold int64) ([]string, error) {
	query := db.NumericLess("created_at", float64(threshold))
	keys, err := r.store.SearchIDs(ctx, r.indexName(), query, 0)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("search old chunks: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, r.keyPrefix()))
	}
	return ids, nil
}

// Count returns the number of chunks in the collection; 0 if it does not exist.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DropAll removes the index and every chunk key. A subsequent
// EnsureCollection yields an empty collection.
func (r *Repo) DropAll(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName(), err)
	}

	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return fmt.Errorf("scan chunk keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("purge %d chunk keys: %w", len(keys), err)
	}
	return nil
}

// staleChunkKeys lists stored keys of the affected source files that are not
// part of the incoming chunk set.
func (r *Repo) staleChunkKeys(ctx context.Context, chunks []domain.Chunk) ([]string, error) {
	incoming := make(map[string]bool, len(chunks))
	files := make(map[string]bool)
	for i := range chunks {
		incoming[r.chunkKey(chunks[i].ID())] = true
		files[chunks[i].Key().SourceFile] = true
	}

	var stale []string
	for file := range files {
		keys, err := r.store.Scan(ctx, r.keyPrefix()+escapeGlob(file)+"__chunk_*")
		if err != nil {
			return nil, fmt.Errorf("scan chunks of %s: %w", file, err)
		}
		for _, key := range keys {
			if !incoming[key] {
				stale = append(stale, key)
			}
		}
	}
	return stale, nil
}

// escapeGlob backslash-escapes SCAN MATCH metacharacters so a filename like
// "report[1].pdf" matches itself literally instead of acting as a pattern.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '^', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.collection)
}

func (r *Repo) keyPrefix() string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, r.collection)
}

func (r *Repo) chunkKey(id string) string {
	return r.keyPrefix() + id
}

func (r *Repo) parseHits(sr *db.SearchResult) []domain.Hit {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, domain.Hit{
			Chunk: parseHashFields(entry.Fields),
			Score: entry.Score,
		})
	}
	return hits
}
