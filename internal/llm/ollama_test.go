package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaSubmitToolCall(t *testing.T) {
	var captured ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model: "test-model",
			Done:  true,
			Message: ollamaMessage{
				Role: "assistant",
				ToolCalls: []OllamaToolCall{{
					Function: OllamaFunctionCall{
						Name:      "web_search",
						Arguments: json.RawMessage(`{"input":"go generics"}`),
					},
				}},
			},
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL, Model: "test-model"})

	msg, err := provider.Submit(context.Background(), &Request{
		SystemPrompt: "plan",
		Messages:     []Message{UserMessage("search go generics")},
		Tools:        []ToolSpec{{Name: "web_search", Description: "Search the web"}},
	})
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID, "ids are generated for ollama calls")
	assert.Equal(t, "web_search", msg.ToolCalls[0].Name)
	assert.Equal(t, "go generics", ToolInput(msg.ToolCalls[0].Arguments))

	assert.False(t, captured.Stream)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, RoleSystem, captured.Messages[0].Role)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
}

func TestOllamaRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})
	_, err := provider.Submit(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestOllamaAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3.1:8b"}]}`))
	}))
	defer server.Close()

	assert.True(t, NewOllamaProvider(&ProviderConfig{Endpoint: server.URL}).Available())
	assert.False(t, NewOllamaProvider(&ProviderConfig{Endpoint: "http://127.0.0.1:1"}).Available())
}

func TestArgumentsObject(t *testing.T) {
	assert.Equal(t, `{"input":"x"}`, argumentsObject(`{"input":"x"}`))
	assert.Equal(t, `{"input":"plain"}`, argumentsObject("plain"))
}
