package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// OllamaProvider implements the Provider interface for a local Ollama server.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *ProviderConfig) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
	}
}

// Available checks if Ollama is running and has at least one model.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", p.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return len(result.Models) > 0
}

// Submit sends a non-streaming chat request with the tool catalog attached.
// Ollama does not assign tool-call ids, so they are generated here.
func (p *OllamaProvider) Submit(ctx context.Context, req *Request) (*Message, error) {
	ollamaReq := ollamaChatRequest{
		Model:  p.config.Model,
		Stream: false,
	}
	ollamaReq.Options.Temperature = p.config.Temperature
	ollamaReq.Options.NumPredict = p.config.MaxTokens
	ollamaReq.Options.TopP = p.config.TopP
	ollamaReq.Options.TopK = p.config.TopK

	if req.SystemPrompt != "" {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
			Role:    RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		om := ollamaMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, OllamaToolCall{
				Function: OllamaFunctionCall{
					Name:      tc.Name,
					Arguments: json.RawMessage(argumentsObject(tc.Arguments)),
				},
			})
		}
		ollamaReq.Messages = append(ollamaReq.Messages, om)
	}
	for _, t := range req.Tools {
		ollamaReq.Tools = append(ollamaReq.Tools, OllamaToolDef{
			Type: "function",
			Function: OllamaFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  ToolInputSchema(),
			},
		})
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("ollama", resp)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &Message{Role: RoleAssistant, Content: chatResp.Message.Content}
	for _, tc := range chatResp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: string(tc.Function.Arguments),
		})
	}
	return out, nil
}

// argumentsObject returns arguments as a JSON object, wrapping plain text in
// the single-input shape.
func argumentsObject(arguments string) string {
	var probe map[string]any
	if json.Unmarshal([]byte(arguments), &probe) == nil {
		return arguments
	}
	return EncodeArguments(arguments)
}

// Ollama API types
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []OllamaToolDef `json:"tools,omitempty"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
		TopP        float64 `json:"top_p,omitempty"`
		TopK        int     `json:"top_k,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
}

// OllamaToolDef is a tool definition in Ollama's chat format.
type OllamaToolDef struct {
	Type     string            `json:"type"`
	Function OllamaFunctionDef `json:"function"`
}

// OllamaFunctionDef describes a callable function.
type OllamaFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OllamaToolCall is a tool invocation returned by the model.
type OllamaToolCall struct {
	Function OllamaFunctionCall `json:"function"`
}

// OllamaFunctionCall carries the function name and its JSON arguments.
type OllamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
