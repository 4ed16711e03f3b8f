package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/infra/llm/chatgpt"
)

// maxBatchTokens stays well below the provider's 300k per-request cap.
const maxBatchTokens = 200_000

// ChatGPT calls the OpenAI-compatible embeddings API, splitting large inputs
// into token-bounded batches.
type ChatGPT struct {
	client *chatgpt.Client
	model  string
	count  func(string) int
	logger *slog.Logger
}

// NewChatGPT constructs an embedder backed by the ChatGPT client. Token counts
// come from the model's tiktoken encoding; when it cannot be loaded a
// rune-based upper estimate is used instead.
func NewChatGPT(client *chatgpt.Client, model string, logger *slog.Logger) *ChatGPT {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedder.chatgpt")
	model = strings.TrimSpace(model)

	count := estimateTokens
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, estimating tokens", "model", model, "error", err)
	} else {
		count = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	}
	return &ChatGPT{client: client, model: model, count: count, logger: logger}
}

// Model identifies the embedding space for corpus fingerprints.
func (e *ChatGPT) Model() string {
	return "openai:" + e.model
}

// Embed requests embeddings for texts, parallel to the input.
func (e *ChatGPT) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([][]float32, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		for _, item := range resp.Data {
			out = append(out, item.Embedding)
		}
		e.logger.Debug("embedding batch done", "inputs", len(batch), "tokens", batchTokens)
		batch = nil
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := e.count(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: tokens=%d", tokens)
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ knowledge.Embedder = (*ChatGPT)(nil)

// estimateTokens over-estimates: ~1 token per 2 runes and never below the
// word count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byRunes := (utf8.RuneCountInString(text) + 1) / 2
	if words := len(strings.Fields(text)); byRunes < words {
		return words
	}
	return byRunes
}
