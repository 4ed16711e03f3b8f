package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

// DefaultOllamaHost is the local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// Ollama calls the /api/embed endpoint of a local Ollama server.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

// NewOllama constructs the embedder.
func NewOllama(host, model string) *Ollama {
	if strings.TrimSpace(host) == "" {
		host = DefaultOllamaHost
	}
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Model identifies the embedding space for corpus fingerprints.
func (e *Ollama) Model() string {
	return "ollama:" + e.model
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts texts in a single request.
func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama embed: status=%d: %s", resp.StatusCode, msg)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

var _ knowledge.Embedder = (*Ollama)(nil)
