package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/bank-support/internal/domain/support"
	"github.com/yanqian/bank-support/internal/infra/llm/chatgpt"
)

var turns = []support.Message{
	{Role: "system", Content: "Ты помощник банка."},
	{Role: "user", Content: "Как заблокировать карту?"},
}

func TestChatGPTLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatgpt.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  В приложении.  "}}]}`))
	}))
	defer srv.Close()

	client, err := chatgpt.NewClient("key", srv.URL)
	require.NoError(t, err)
	answer, err := NewChatGPTLLM(client, "gpt-4o-mini", 0.2).Chat(context.Background(), turns)
	require.NoError(t, err)
	require.Equal(t, "В приложении.", answer)
}

func TestOllamaLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)
		require.Equal(t, "user", req.Messages[1].Role)
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaChatMessage{Role: "assistant", Content: "Ответ"}})
	}))
	defer srv.Close()

	answer, err := NewOllamaLLM(srv.URL+"/", "llama3").Chat(context.Background(), turns)
	require.NoError(t, err)
	require.Equal(t, "Ответ", answer)
}

func TestOllamaLLMError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaLLM(srv.URL, "llama3").Chat(context.Background(), turns)
	require.ErrorContains(t, err, "out of memory")
}
