package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiProvider implements the Provider interface with the Google GenAI SDK.
type GeminiProvider struct {
	config   *ProviderConfig
	generate generateFunc
}

// NewGeminiProvider creates a new Gemini provider. A provider without an API
// key is returned unavailable rather than as an error.
func NewGeminiProvider(ctx context.Context, cfg *ProviderConfig) (*GeminiProvider, error) {
	cfg = withDefaults(cfg, "gemini")
	p := &GeminiProvider{config: cfg}
	if cfg.APIKey == "" {
		return p, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	p.generate = client.Models.GenerateContent
	return p, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Available reports whether a client was configured.
func (p *GeminiProvider) Available() bool {
	return p.generate != nil
}

// Submit sends the conversation with function declarations for every tool.
func (p *GeminiProvider) Submit(ctx context.Context, req *Request) (*Message, error) {
	if p.generate == nil {
		return nil, fmt.Errorf("Gemini API key not configured")
	}

	contents, err := toGenAIContents(req.Messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.generate(ctx, p.config.Model, contents, p.generationConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return fromGenAIResponse(resp)
}

func (p *GeminiProvider) generationConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if p.config.Temperature > 0 {
		temp := float32(p.config.Temperature)
		cfg.Temperature = &temp
	}
	if p.config.TopP > 0 {
		topP := float32(p.config.TopP)
		cfg.TopP = &topP
	}
	if p.config.TopK > 0 {
		topK := float32(p.config.TopK)
		cfg.TopK = &topK
	}
	if p.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: ToolInputSchema(),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	return cfg
}

// toGenAIContents converts history to GenAI contents. Consecutive tool
// messages are merged into one user turn of function responses.
func toGenAIContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{"output": msg.Content})
			part.FunctionResponse.ID = msg.ToolCallID
			pending = append(pending, part)

		case RoleAssistant:
			flush()
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := make(map[string]any)
				if strings.TrimSpace(tc.Arguments) != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						args = map[string]any{"input": tc.Arguments}
					}
				}
				part := genai.NewPartFromFunctionCall(tc.Name, args)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(""))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		default:
			flush()
			if msg.Content == "" {
				continue
			}
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	flush()

	return contents, nil
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) (*Message, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &Message{Role: RoleAssistant}
	content := resp.Candidates[0].Content
	if content == nil {
		return out, nil
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || part.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	out.Content = sb.String()
	return out, nil
}
