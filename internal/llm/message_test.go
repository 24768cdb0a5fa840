package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolInput(t *testing.T) {
	tests := []struct {
		name      string
		arguments string
		expected  string
	}{
		{"input field", `{"input":"Paris"}`, "Paris"},
		{"single other string field", `{"query":"golang"}`, "golang"},
		{"json string", `"plain"`, "plain"},
		{"plain text", "  just text ", "just text"},
		{"empty", "", ""},
		{"empty object", "{}", ""},
		{"null", "null", ""},
		{"structured object kept verbatim", `{"issue":"disk","severity":2}`, `{"issue":"disk","severity":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToolInput(tt.arguments))
		})
	}
}

func TestEncodeArgumentsRoundTrip(t *testing.T) {
	encoded := EncodeArguments(`say "hi"`)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, `say "hi"`, decoded["input"])
	assert.Equal(t, `say "hi"`, ToolInput(encoded))
}

func TestMessageConstructors(t *testing.T) {
	call := ToolCall{ID: "call-1", Name: "get_weather", Arguments: EncodeArguments("Oslo")}

	result := ToolResultMessage(call, "Oslo: +3°C")
	assert.Equal(t, RoleTool, result.Role)
	assert.Equal(t, "call-1", result.ToolCallID)
	assert.Equal(t, "get_weather", result.Name)

	assistant := Message{Role: RoleAssistant, ToolCalls: []ToolCall{call}}
	assert.True(t, assistant.HasToolCalls())
	assert.False(t, UserMessage("hi").HasToolCalls())
	assert.Equal(t, RoleAssistant, AssistantMessage("ok").Role)
}

func TestToolInputSchema(t *testing.T) {
	schema := ToolInputSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"input"}, schema["required"])
}
