// Package llm adapts chat backends to the support orchestrator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/bank-support/internal/domain/support"
	"github.com/yanqian/bank-support/internal/infra/llm/chatgpt"
)

// ChatGPTLLM adapts the ChatGPT client.
type ChatGPTLLM struct {
	client      *chatgpt.Client
	model       string
	temperature float32
}

// NewChatGPTLLM constructs the adapter.
func NewChatGPTLLM(client *chatgpt.Client, model string, temperature float32) *ChatGPTLLM {
	return &ChatGPTLLM{client: client, model: model, temperature: temperature}
}

// Chat sends a chat completion request.
func (l *ChatGPTLLM) Chat(ctx context.Context, messages []support.Message) (string, error) {
	req := chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    make([]chatgpt.Message, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, chatgpt.Message{Role: msg.Role, Content: msg.Content})
	}
	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ support.LLM = (*ChatGPTLLM)(nil)

// OllamaLLM calls the /api/chat endpoint of a local Ollama server.
type OllamaLLM struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaLLM constructs the adapter.
func NewOllamaLLM(host, model string) *OllamaLLM {
	return &OllamaLLM{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

// Chat sends a non-streaming chat request.
func (l *OllamaLLM) Chat(ctx context.Context, messages []support.Message) (string, error) {
	body := ollamaChatRequest{Model: l.model, Messages: make([]ollamaChatMessage, 0, len(messages))}
	for _, msg := range messages {
		body.Messages = append(body.Messages, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama chat: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama chat: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama chat: status=%d: %s", resp.StatusCode, out.Error)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

var _ support.LLM = (*OllamaLLM)(nil)
