package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/metrics"
)

// Compile-time check: Completer implements domain.Completer.
var _ domain.Completer = (*Completer)(nil)

// Completer is a chat-completion provider using an OpenAI-compatible API
// (e.g. Groq). Temperature is pinned to zero so answers stay grounded in
// the supplied context rather than the model's imagination.
type Completer struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	provider  string
	purpose   string
	logger    *zap.Logger
}

// CompleterConfig holds the chat provider settings.
type CompleterConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Provider  string
	Purpose   string
	Logger    *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat-completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	purpose := cfg.Purpose
	if purpose == "" {
		purpose = "general"
	}

	return &Completer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		provider:  cfg.Provider,
		purpose:   purpose,
		logger:    cfg.Logger,
	}
}

// WithPurpose returns a copy of the completer that reports metrics under the
// given purpose label without allocating a second HTTP client.
func (c *Completer) WithPurpose(purpose string) *Completer {
	clone := *c
	clone.purpose = purpose
	return &clone
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0,
	})

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, c.purpose, "error").Inc()
		return "", parseAPIError(err, "completion", domain.ErrCompletionProviderError)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, c.purpose, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, c.purpose, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model, c.purpose).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}
