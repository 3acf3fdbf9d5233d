package index

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

// Hash field names. The metadata fields are indexed under their aliases
// (source_file, chunk_index, uploader, created_at).
const (
	fieldContent    = "__content"
	fieldVector     = "__vector"
	fieldSourceFile = "__source_file"
	fieldChunkIndex = "__chunk_index"
	fieldUploader   = "__uploader"
	fieldCreatedAt  = "__created_at"
)

// buildHashFields converts a domain Chunk into a flat map[string]string for HSET.
func buildHashFields(c *domain.Chunk) map[string]string {
	return map[string]string{
		fieldContent:    c.Text(),
		fieldVector:     vectorToBytes(c.Vector()),
		fieldSourceFile: c.Key().SourceFile,
		fieldChunkIndex: strconv.Itoa(c.Key().Ordinal),
		fieldUploader:   c.Uploader(),
		fieldCreatedAt:  strconv.FormatInt(c.CreatedAt(), 10),
	}
}

// parseHashFields converts a flat hash map back into a domain Chunk. The
// structured key comes from the stored metadata fields, never from parsing
// the id string.
func parseHashFields(m map[string]string) domain.Chunk {
	key := domain.ChunkKey{SourceFile: m[fieldSourceFile]}
	if n, err := strconv.Atoi(m[fieldChunkIndex]); err == nil {
		key.Ordinal = n
	}

	var createdAt int64
	if ts, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil {
		createdAt = ts
	}

	return domain.ReconstructChunk(key, m[fieldContent], m[fieldUploader], createdAt, bytesToVector(m[fieldVector]))
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	if s == "" || len(s)%4 != 0 {
		return nil
	}
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v
}
