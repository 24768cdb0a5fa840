package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/normanking/zira/internal/llm"
)

func TestPlanningPrompt(t *testing.T) {
	prompt := PlanningPrompt("You are Zira.", []llm.ToolSpec{
		{Name: "get_weather", Description: "Weather for a city"},
		{Name: "web_search", Description: "Search the web"},
	})

	assert.True(t, strings.HasPrefix(prompt, "You are Zira.\n\nBased on the conversation so far"))
	assert.Contains(t, prompt, "Available tools:\nget_weather: Weather for a city\nweb_search: Search the web\n\n")
	assert.True(t, strings.HasSuffix(prompt, "Respond with a Final Answer: <your answer> if you are done, or by calling a tool if needed."))
}

func TestPlanningPromptWithoutPersona(t *testing.T) {
	prompt := PlanningPrompt("", nil)
	assert.True(t, strings.HasPrefix(prompt, "Based on the conversation so far"))
}

func ExamplePlanningPrompt() {
	fmt.Println(PlanningPrompt("You are Zira.", []llm.ToolSpec{{Name: "get_weather", Description: "Current weather"}}))
	// Output:
	// You are Zira.
	//
	// Based on the conversation so far, decide whether to provide a Final Answer, or to use an available tool.
	//
	// Available tools:
	// get_weather: Current weather
	//
	// Respond with a Final Answer: <your answer> if you are done, or by calling a tool if needed.
}
