package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/logger"
)

// noRelevantContent is the marker the compressor returns when a chunk has
// nothing useful for the question. Such chunks are dropped.
const noRelevantContent = "NO_RELEVANT_CONTENT"

const expansionPrompt = `You are an AI language model assistant. Your task is to generate %d
different versions of the given user question to retrieve relevant documents from
a vector database. By generating multiple perspectives on the user question, your
goal is to help the user overcome some of the limitations of distance-based
similarity search. Provide these alternative questions separated by newlines.
Original question: %s`

const compressionPrompt = `Given the following question and context, extract any part of the context
VERBATIM that is relevant to answer the question. If none of the context is
relevant, return %s.

Remember, DO NOT edit the extracted parts of the context.

> Question: %s
> Context:
>>>
%s
>>>
Extracted relevant parts:`

// Service is the retrieval half of the answering pipeline: it expands the
// question into alternative phrasings, runs a vector search per phrasing,
// merges the hits, and compresses each surviving chunk down to the parts
// that actually bear on the question.
type Service struct {
	embedder   Embedder
	completer  Completer
	index      IndexRepo
	topK       int
	expansions int
}

// New creates a retrieval service. topK is the per-query KNN depth and
// expansions the number of alternative phrasings requested from the LLM.
func New(embedder Embedder, completer Completer, index IndexRepo, topK, expansions int) *Service {
	if topK <= 0 {
		topK = 10
	}
	if expansions <= 0 {
		expansions = 3
	}
	return &Service{
		embedder:   embedder,
		completer:  completer,
		index:      index,
		topK:       topK,
		expansions: expansions,
	}
}

// Retrieve returns compressed context for the question, ordered by descending
// similarity. An empty result means nothing relevant was found; callers
// produce the not-found answer from that, not from an error.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.ContextItem, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}

	queries := s.expandQuery(ctx, question)

	hits, err := s.searchAll(ctx, queries)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	return s.compress(ctx, question, hits), nil
}

// expandQuery asks the LLM for alternative phrasings. The original question
// is always included; on any failure the original alone is used.
func (s *Service) expandQuery(ctx context.Context, question string) []string {
	log := logger.FromContext(ctx)

	raw, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Prompt: fmt.Sprintf(expansionPrompt, s.expansions, question),
	})
	if err != nil {
		log.Warn("query expansion failed, using original question", zap.Error(err))
		return []string{question}
	}

	queries := []string{question}
	seen := map[string]bool{normalizeQuery(question): true}
	for _, line := range strings.Split(raw, "\n") {
		q := cleanExpansionLine(line)
		if q == "" || seen[normalizeQuery(q)] {
			continue
		}
		seen[normalizeQuery(q)] = true
		queries = append(queries, q)
		if len(queries) > s.expansions {
			break
		}
	}
	return queries
}

// searchAll embeds each query, runs KNN per query, and merges hits keyed by
// chunk id keeping the best score. A missing collection means no documents
// were ever ingested and yields no hits.
func (s *Service) searchAll(ctx context.Context, queries []string) ([]domain.Hit, error) {
	log := logger.FromContext(ctx)

	best := make(map[string]domain.Hit)
	for _, q := range queries {
		result, err := s.embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}

		hits, err := s.index.Query(ctx, result.Embedding, s.topK)
		if err != nil {
			if errors.Is(err, domain.ErrCollectionNotFound) {
				log.Debug("collection missing, no documents ingested yet")
				return nil, nil
			}
			return nil, fmt.Errorf("vector search: %w", err)
		}

		for _, h := range hits {
			id := h.Chunk.ID()
			if prev, ok := best[id]; !ok || h.Score > prev.Score {
				best[id] = h
			}
		}
	}

	merged := make([]domain.Hit, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Chunk.ID() < merged[j].Chunk.ID()
	})
	return merged, nil
}

// compress extracts the question-relevant parts of each hit. On LLM failure
// the raw chunk text is used so retrieval degrades instead of breaking.
func (s *Service) compress(ctx context.Context, question string, hits []domain.Hit) []domain.ContextItem {
	log := logger.FromContext(ctx)

	items := make([]domain.ContextItem, 0, len(hits))
	for _, h := range hits {
		text := h.Chunk.Text()

		extracted, err := s.completer.Complete(ctx, domain.CompletionRequest{
			Prompt: fmt.Sprintf(compressionPrompt, noRelevantContent, question, text),
		})
		if err != nil {
			log.Warn("context compression failed, keeping raw chunk",
				zap.String("chunk", h.Chunk.ID()), zap.Error(err))
		} else {
			extracted = strings.TrimSpace(extracted)
			if extracted == "" || strings.Contains(extracted, noRelevantContent) {
				continue
			}
			text = extracted
		}

		items = append(items, domain.ContextItem{
			Text:       text,
			SourceFile: h.Chunk.Key().SourceFile,
			ChunkIndex: h.Chunk.Key().Ordinal,
			Uploader:   h.Chunk.Uploader(),
			Score:      h.Score,
		})
	}
	return items
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// cleanExpansionLine strips list markers the LLM tends to prepend.
func cleanExpansionLine(line string) string {
	q := strings.TrimSpace(line)
	q = strings.TrimLeft(q, "0123456789.)- ")
	q = strings.Trim(q, `"`)
	return strings.TrimSpace(q)
}
