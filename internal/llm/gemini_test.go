package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiSubmit(t *testing.T) {
	var gotModel string
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig

	p := &GeminiProvider{
		config: withDefaults(nil, "gemini"),
		generate: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, cfg
			part := genai.NewPartFromFunctionCall("get_weather", map[string]any{"input": "Tokyo"})
			part.FunctionCall.ID = "fc-1"
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: genai.NewContentFromParts([]*genai.Part{part}, genai.RoleModel),
				}},
			}, nil
		},
	}

	msg, err := p.Submit(context.Background(), &Request{
		SystemPrompt: "plan",
		Messages:     []Message{UserMessage("weather in Tokyo")},
		Tools:        []ToolSpec{{Name: "get_weather", Description: "Weather"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", gotModel)
	require.Len(t, gotContents, 1)
	require.NotNil(t, gotConfig.SystemInstruction)
	require.Len(t, gotConfig.Tools, 1)
	assert.Equal(t, "get_weather", gotConfig.Tools[0].FunctionDeclarations[0].Name)
	require.NotNil(t, gotConfig.Temperature)
	assert.InDelta(t, 0.5, *gotConfig.Temperature, 0.001)
	assert.Equal(t, int32(800), gotConfig.MaxOutputTokens)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "fc-1", msg.ToolCalls[0].ID)
	assert.Equal(t, "Tokyo", ToolInput(msg.ToolCalls[0].Arguments))
}

func TestToGenAIContentsGroupsToolResponses(t *testing.T) {
	first := ToolCall{ID: "a", Name: "web_search", Arguments: EncodeArguments("x")}
	second := ToolCall{ID: "b", Name: "get_weather", Arguments: "Paris"}

	contents, err := toGenAIContents([]Message{
		UserMessage("do both"),
		{Role: RoleAssistant, ToolCalls: []ToolCall{first, second}},
		ToolResultMessage(first, "result a"),
		ToolResultMessage(second, "result b"),
		AssistantMessage("Final Answer: done"),
	})
	require.NoError(t, err)
	require.Len(t, contents, 4)

	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Paris", contents[1].Parts[1].FunctionCall.Args["input"])

	responses := contents[2]
	assert.Equal(t, string(genai.RoleUser), responses.Role)
	require.Len(t, responses.Parts, 2)
	assert.Equal(t, "a", responses.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "result b", responses.Parts[1].FunctionResponse.Response["output"])
}

func TestFromGenAIResponse(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		msg, err := fromGenAIResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: genai.NewContentFromText("Final Answer: hi", genai.RoleModel)}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Final Answer: hi", msg.Content)
		assert.Empty(t, msg.ToolCalls)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := fromGenAIResponse(&genai.GenerateContentResponse{})
		require.Error(t, err)
	})

	t.Run("call without id gets one", func(t *testing.T) {
		part := genai.NewPartFromFunctionCall("local_factsheet", nil)
		msg, err := fromGenAIResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: genai.NewContentFromParts([]*genai.Part{part}, genai.RoleModel)}},
		})
		require.NoError(t, err)
		require.Len(t, msg.ToolCalls, 1)
		assert.NotEmpty(t, msg.ToolCalls[0].ID)
		assert.Equal(t, "{}", msg.ToolCalls[0].Arguments)
	})
}

func TestGeminiWithoutKey(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), &ProviderConfig{})
	require.NoError(t, err)
	assert.False(t, p.Available())

	_, err = p.Submit(context.Background(), &Request{})
	require.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "ollama"} {
		p, err := NewProvider(context.Background(), name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := NewProvider(context.Background(), "nope", nil)
	require.Error(t, err)
}
