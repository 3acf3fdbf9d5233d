package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound signals that the chunk collection does not exist yet.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidChunk signals a malformed chunk.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrInvalidInput signals a malformed client request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a language model provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrBlobStore signals a failed encrypted blob write.
	ErrBlobStore = errors.New("blob store failure")
	// ErrEncryptionKey signals an unusable blob encryption key.
	ErrEncryptionKey = errors.New("missing or invalid encryption key")
)
