package agent

import (
	"strings"

	"github.com/normanking/zira/internal/llm"
)

// PlanningPrompt builds the system instruction sent ahead of the history on
// every planning submission.
func PlanningPrompt(persona string, catalog []llm.ToolSpec) string {
	var sb strings.Builder

	if persona != "" {
		sb.WriteString(persona)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Based on the conversation so far, decide whether to provide a Final Answer, or to use an available tool.\n\n")
	sb.WriteString("Available tools:\n")
	for _, t := range catalog {
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString("Respond with a Final Answer: <your answer> if you are done, or by calling a tool if needed.")

	return sb.String()
}
