package ingest

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterProviderMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockBlobStore struct {
	storedFile string
	storedData []byte
	err        error
}

func (m *mockBlobStore) Store(filename string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.storedFile = filename
	m.storedData = data
	return filename + ".enc", nil
}

type mockExtractor struct {
	text string
}

func (m *mockExtractor) Text(_ string, _ []byte) string {
	return m.text
}

type mockSplitter struct {
	pieces []string
}

func (m *mockSplitter) Split(_ string) []string {
	return m.pieces
}

type mockEmbedder struct {
	err   error
	dim   int
	calls [][]string
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	m.calls = append(m.calls, texts)
	if m.err != nil {
		return nil, m.err
	}
	dim := m.dim
	if dim == 0 {
		dim = 3
	}
	results := make([]domain.EmbeddingResult, len(texts))
	for i := range texts {
		results[i] = domain.EmbeddingResult{Embedding: make([]float32, dim)}
	}
	return results, nil
}

type mockIndexRepo struct {
	ensureErr    error
	upsertErr    error
	deleteErr    error
	upserted     []domain.Chunk
	deletedFiles []string
}

func (m *mockIndexRepo) EnsureCollection(_ context.Context) error {
	return m.ensureErr
}

func (m *mockIndexRepo) UpsertChunks(_ context.Context, chunks []domain.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, chunks...)
	return nil
}

func (m *mockIndexRepo) DeleteBySourceFile(_ context.Context, sourceFile string) error {
	m.deletedFiles = append(m.deletedFiles, sourceFile)
	return m.deleteErr
}

func newService(blobs *mockBlobStore, embedder *mockEmbedder, index *mockIndexRepo, pieces []string) *Service {
	return New(
		blobs,
		&mockExtractor{text: "extracted"},
		&mockSplitter{pieces: pieces},
		embedder,
		index,
	).WithClock(func() time.Time { return time.Unix(1700000000, 0) })
}

func TestIngest_Success(t *testing.T) {
	blobs := &mockBlobStore{}
	embedder := &mockEmbedder{}
	index := &mockIndexRepo{}
	svc := newService(blobs, embedder, index, []string{"chunk one", "chunk two"})

	receipt, err := svc.Ingest(context.Background(), "report.pdf", []byte("raw"), "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if receipt.File != "report.pdf" || receipt.ChunksAdded != 2 {
		t.Errorf("receipt = %+v, want report.pdf/2", receipt)
	}
	if blobs.storedFile != "report.pdf" {
		t.Errorf("blob stored for %q, want report.pdf", blobs.storedFile)
	}
	if len(index.upserted) != 2 {
		t.Fatalf("upserted %d chunks, want 2", len(index.upserted))
	}

	for i, c := range index.upserted {
		wantID := domain.ChunkKey{SourceFile: "report.pdf", Ordinal: i}.String()
		if c.ID() != wantID {
			t.Errorf("chunk %d id = %q, want %q", i, c.ID(), wantID)
		}
		if c.CreatedAt() != 1700000000 {
			t.Errorf("chunk %d created_at = %d, want 1700000000", i, c.CreatedAt())
		}
		if c.Uploader() != "alice" {
			t.Errorf("chunk %d uploader = %q, want alice", i, c.Uploader())
		}
		if len(c.Vector()) == 0 {
			t.Errorf("chunk %d has no vector", i)
		}
	}
}

func TestIngest_SameTimestampAcrossChunks(t *testing.T) {
	index := &mockIndexRepo{}
	svc := newService(&mockBlobStore{}, &mockEmbedder{}, index, []string{"a", "b", "c"})

	if _, err := svc.Ingest(context.Background(), "f.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	first := index.upserted[0].CreatedAt()
	for _, c := range index.upserted[1:] {
		if c.CreatedAt() != first {
			t.Errorf("created_at differs within one ingestion: %d vs %d", c.CreatedAt(), first)
		}
	}
}

func TestIngest_BlobFailureAborts(t *testing.T) {
	blobs := &mockBlobStore{err: errors.New("disk full")}
	embedder := &mockEmbedder{}
	index := &mockIndexRepo{}
	svc := newService(blobs, embedder, index, []string{"a"})

	if _, err := svc.Ingest(context.Background(), "f.txt", []byte("x"), ""); err == nil {
		t.Fatal("expected error when blob store fails")
	}
	if len(embedder.calls) != 0 {
		t.Error("embedder called despite blob failure")
	}
	if len(index.upserted) != 0 {
		t.Error("chunks indexed despite blob failure")
	}
}

func TestIngest_UpsertFailureRollsBack(t *testing.T) {
	index := &mockIndexRepo{upsertErr: errors.New("write failed")}
	svc := newService(&mockBlobStore{}, &mockEmbedder{}, index, []string{"a", "b"})

	if _, err := svc.Ingest(context.Background(), "f.txt", []byte("x"), ""); err == nil {
		t.Fatal("expected error when upsert fails")
	}
	if len(index.deletedFiles) != 1 || index.deletedFiles[0] != "f.txt" {
		t.Errorf("rollback deletes = %v, want [f.txt]", index.deletedFiles)
	}
}

func TestIngest_EmbedderFailure(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("api down")}
	index := &mockIndexRepo{}
	svc := newService(&mockBlobStore{}, embedder, index, []string{"a"})

	if _, err := svc.Ingest(context.Background(), "f.txt", []byte("x"), ""); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(index.upserted) != 0 {
		t.Error("chunks indexed despite embedding failure")
	}
}

func TestIngest_SentinelChunkStillIndexed(t *testing.T) {
	// Unreadable files produce the sentinel chunk so the upload stays visible.
	index := &mockIndexRepo{}
	svc := newService(&mockBlobStore{}, &mockEmbedder{}, index, []string{domain.SentinelChunkText})

	receipt, err := svc.Ingest(context.Background(), "scan.pdf", []byte{0xFF}, "bob")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if receipt.ChunksAdded != 1 {
		t.Fatalf("chunks added = %d, want 1", receipt.ChunksAdded)
	}
	if index.upserted[0].Text() != domain.SentinelChunkText {
		t.Errorf("chunk text = %q, want sentinel", index.upserted[0].Text())
	}
}

func TestIngest_EmptyInput(t *testing.T) {
	svc := newService(&mockBlobStore{}, &mockEmbedder{}, &mockIndexRepo{}, []string{"a"})

	if _, err := svc.Ingest(context.Background(), "", []byte("x"), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty filename: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Ingest(context.Background(), "f.txt", nil, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty data: got %v, want ErrInvalidInput", err)
	}
}
