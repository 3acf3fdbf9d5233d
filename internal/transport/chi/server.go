package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	answeruc "github.com/inscribe-ai/inscribe/internal/usecase/answer"
	collectionuc "github.com/inscribe-ai/inscribe/internal/usecase/collection"
	ingestuc "github.com/inscribe-ai/inscribe/internal/usecase/ingest"
	"github.com/inscribe-ai/inscribe/internal/version"
)

// Error codes returned to API clients.
const (
	codeBadRequest              = "bad_request"
	codeUnauthorized            = "unauthorized"
	codeNotFound                = "not_found"
	codePayloadTooLarge         = "payload_too_large"
	codeVectorDimMismatch       = "vector_dim_mismatch"
	codeEmbeddingProviderError  = "embedding_provider_error"
	codeCompletionProviderError = "completion_provider_error"
	codeInternalError           = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryRequest is the POST /query body.
type QueryRequest struct {
	Question string `json:"question"`
}

// UploadResult is the per-file outcome of a POST /documents request.
type UploadResult struct {
	File        string `json:"file"`
	ChunksAdded int    `json:"chunks_added,omitempty"`
	Error       string `json:"error,omitempty"`
}

// UploadResponse is the POST /documents reply.
type UploadResponse struct {
	Results []UploadResult `json:"results"`
}

// SourceItem is one context passage the answer was grounded on.
type SourceItem struct {
	SourceFile string  `json:"source_file"`
	ChunkIndex int     `json:"chunk_index"`
	Uploader   string  `json:"uploader,omitempty"`
	Score      float64 `json:"score"`
}

// QueryResponse is the POST /query reply.
type QueryResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceItem `json:"sources"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Pinger checks database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, data []byte, uploader string) (ingestuc.Receipt, error)
}

// Answerer produces grounded answers.
type Answerer interface {
	Answer(ctx context.Context, question string) (answeruc.Result, error)
}

// CollectionAdmin reports and clears the chunk collection.
type CollectionAdmin interface {
	Status(ctx context.Context) (collectionuc.Status, error)
	Clear(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the document QA API over chi.
type Server struct {
	ingest         Ingestor
	answers        Answerer
	collections    CollectionAdmin
	pinger         Pinger
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest Ingestor,
	answers Answerer,
	collections CollectionAdmin,
	pinger Pinger,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:         ingest,
		answers:        answers,
		collections:    collections,
		pinger:         pinger,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrInvalidChunk, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeCompletionProviderError),
	}
	return s
}

// Routes mounts the API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/documents", s.UploadDocument)
	r.Get("/documents", s.CollectionStatus)
	r.Delete("/documents", s.ClearDocuments)
	r.Post("/query", s.Query)
	r.Get("/health", s.Health)
}

// UploadDocument handles POST /documents (multipart form with one or more
// "file" parts and an optional "uploader" field). Files are ingested
// independently: one bad file does not fail the others.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, `missing "file" part`)
		return
	}

	uploader := strings.TrimSpace(r.FormValue("uploader"))

	results := make([]UploadResult, 0, len(headers))
	var firstErr error
	failed := 0
	for _, header := range headers {
		receipt, err := s.ingestOne(r, header, uploader)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
			s.logger.Warn("file ingestion failed",
				zap.String("file", header.Filename), zap.Error(err))
			results = append(results, UploadResult{File: header.Filename, Error: safeDomainMessage(err)})
			continue
		}
		results = append(results, UploadResult{File: receipt.File, ChunksAdded: receipt.ChunksAdded})
	}

	// All files failed: surface the first error's status instead of 201.
	if failed == len(headers) {
		s.handleDomainError(w, firstErr)
		return
	}

	status := http.StatusCreated
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, UploadResponse{Results: results})
}

func (s *Server) ingestOne(r *http.Request, header *multipart.FileHeader, uploader string) (ingestuc.Receipt, error) {
	file, err := header.Open()
	if err != nil {
		return ingestuc.Receipt{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingestuc.Receipt{}, fmt.Errorf("read upload: %w", err)
	}

	return s.ingest.Ingest(r.Context(), header.Filename, data, uploader)
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "question is required")
		return
	}

	result, err := s.answers.Answer(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := QueryResponse{
		Answer:  result.Answer,
		Sources: make([]SourceItem, 0, len(result.Sources)),
	}
	for _, item := range result.Sources {
		resp.Sources = append(resp.Sources, SourceItem{
			SourceFile: item.SourceFile,
			ChunkIndex: item.ChunkIndex,
			Uploader:   item.Uploader,
			Score:      item.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CollectionStatus handles GET /documents.
func (s *Server) CollectionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.collections.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ClearDocuments handles DELETE /documents.
func (s *Server) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Clear(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "degraded",
				Version: version.Version,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrInvalidChunk,
		domain.ErrVectorDimMismatch,
		domain.ErrNotFound,
		domain.ErrCollectionNotFound,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
