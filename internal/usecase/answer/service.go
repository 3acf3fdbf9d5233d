package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/logger"
)

// NotFoundAnswer is returned verbatim when the context cannot support an
// answer, either because retrieval came back empty or because the model
// says so.
const NotFoundAnswer = "Not found in the documents."

const answerHeader = "### 📄 Answer\n"

const synthesisPrompt = `You are a highly efficient legal assistant. Use ONLY the context below to answer the question.
If the context does not contain the answer, reply: "%s"
Cite the source inline by referencing the source_file and page number in square brackets,
right after the relevant sentence (example: [contract.docx, page 2]).
Format the response in a clear and structured way with headings and bullet points.
---------------------
Context:
%s
---------------------
Question:
%s
Answer (use only the context above):`

// Result is a synthesized answer with the context it was grounded on.
type Result struct {
	Answer  string
	Sources []domain.ContextItem
}

// Service turns a question into a grounded, citation-bearing answer.
type Service struct {
	retriever Retriever
	completer Completer
}

// New creates an answering service.
func New(retriever Retriever, completer Completer) *Service {
	return &Service{retriever: retriever, completer: completer}
}

// Answer retrieves context for the question and synthesizes the final answer.
// When retrieval finds nothing, the not-found answer is produced without
// calling the model at all.
func (s *Service) Answer(ctx context.Context, question string) (Result, error) {
	items, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve context: %w", err)
	}

	answer, err := s.Synthesize(ctx, question, items)
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Sources: items}, nil
}

// Synthesize generates the answer text from already-retrieved context.
func (s *Service) Synthesize(ctx context.Context, question string, items []domain.ContextItem) (string, error) {
	log := logger.FromContext(ctx)

	if len(items) == 0 {
		log.Info("no context retrieved, answering not found")
		return answerHeader + NotFoundAnswer, nil
	}

	prompt := fmt.Sprintf(synthesisPrompt, NotFoundAnswer, formatContext(items), question)

	raw, err := s.completer.Complete(ctx, domain.CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}

	log.Debug("answer synthesized",
		zap.Int("context_items", len(items)),
		zap.Int("answer_len", len(raw)),
	)
	return answerHeader + strings.TrimSpace(raw), nil
}

// formatContext renders context items as source-labeled blocks so the model
// can cite them.
func formatContext(items []domain.ContextItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[source_file: %s, chunk: %d]\n%s", item.SourceFile, item.ChunkIndex, item.Text)
	}
	return b.String()
}
