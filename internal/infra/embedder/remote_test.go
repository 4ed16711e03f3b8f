package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/bank-support/internal/infra/llm/chatgpt"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}, {0, 1}}})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL+"/", "nomic-embed-text")
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	require.Equal(t, "ollama:nomic-embed-text", e.Model())
}

func TestOllamaEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "missing").Embed(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "model not found")
}

func TestChatGPTEmbedSplitsBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req chatgpt.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := chatgpt.EmbeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, chatgpt.EmbeddingData{Index: i, Embedding: []float32{float32(calls)}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := chatgpt.NewClient("key", srv.URL)
	require.NoError(t, err)
	e := &ChatGPT{
		client: client,
		model:  "text-embedding-3-small",
		count:  func(string) int { return maxBatchTokens / 2 },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, [][]float32{{1}, {1}, {2}}, vectors)
}

func TestChatGPTEmbedRejectsOversizedText(t *testing.T) {
	e := &ChatGPT{
		count:  func(string) int { return maxBatchTokens + 1 },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	_, err := e.Embed(context.Background(), []string{"huge"})
	require.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, estimateTokens(""))
	require.Equal(t, 3, estimateTokens("abcdef"))
	require.Equal(t, 4, estimateTokens(strings.Repeat("a ", 4)))
}
