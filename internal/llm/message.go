package llm

import (
	"encoding/json"
	"strings"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message is one entry of a session history.
//
// Assistant messages may carry ToolCalls. Tool messages carry the ToolCallID and
// Name of the call they answer, and must follow the assistant message that
// requested that call.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a reasoning-engine request to invoke a named tool.
// Arguments is opaque to the engine layer; tools receive it as one string.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises a tool to the reasoning engine.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant text message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage builds the tool message answering call.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// HasToolCalls reports whether the message requests any tool invocation.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolInputSchema is the JSON schema every tool is advertised with: a single
// required string named "input".
func ToolInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "The input for the tool.",
			},
		},
		"required": []string{"input"},
	}
}

// EncodeArguments wraps a single tool argument in the shape ToolInputSchema describes.
func EncodeArguments(input string) string {
	data, _ := json.Marshal(map[string]string{"input": input})
	return string(data)
}

// ToolInput extracts the single string argument from raw call arguments.
// Objects with an "input" string yield that string. Any other JSON object is
// passed through verbatim, and non-JSON text is returned trimmed.
func ToolInput(arguments string) string {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return ""
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		var s string
		if json.Unmarshal([]byte(trimmed), &s) == nil {
			return s
		}
		return trimmed
	}

	if len(args) == 0 {
		return ""
	}
	if v, ok := args["input"].(string); ok {
		return v
	}
	if len(args) == 1 {
		for _, v := range args {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return trimmed
}
