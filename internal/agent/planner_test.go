package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/session"
)

// fakeTools is a ToolExecutor with per-tool behavior.
type fakeTools struct {
	mu    sync.Mutex
	fns   map[string]func(ctx context.Context, arg string) (string, error)
	calls []string
}

func (f *fakeTools) Catalog() []llm.ToolSpec {
	return []llm.ToolSpec{
		{Name: "get_weather", Description: "Weather for a city"},
		{Name: "web_search", Description: "Search the web"},
	}
}

func (f *fakeTools) Invoke(ctx context.Context, name, arg string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+"("+arg+")")
	fn, ok := f.fns[name]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	return fn(ctx, arg)
}

func toolCallReply(calls ...llm.ToolCall) scriptedResult {
	return scriptedResult{msg: &llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}}
}

func call(id, name, arg string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: llm.EncodeArguments(arg)}
}

func newTestPlanner(provider *scriptedProvider, tools ToolExecutor, store *session.Store, cfg PlannerConfig) *Planner {
	return NewPlanner(NewInvoker(provider, fastRetry(3)), tools, store, cfg)
}

func TestPlannerFinalAnswer(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{answer("  FINAL ANSWER:   Hello there. ")}}
	store := session.NewStore(session.Options{})

	var events []StepEventType
	p := newTestPlanner(provider, &fakeTools{}, store, PlannerConfig{
		Persona: "You are Zira.",
		OnStep:  func(e *StepEvent) { events = append(events, e.Type) },
	})

	res, err := p.Run(context.Background(), "s", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", res.Text)
	assert.Equal(t, session.OutcomeFinalAnswer, res.Outcome)
	assert.Equal(t, 1, res.Iterations)

	history := store.History("s")
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, session.OutcomeFinalAnswer, store.Get("s").LastOutcome)

	require.Len(t, provider.reqs, 1)
	assert.Contains(t, provider.reqs[0].SystemPrompt, "You are Zira.")
	assert.Contains(t, provider.reqs[0].SystemPrompt, "get_weather: Weather for a city")
	assert.Len(t, provider.reqs[0].Tools, 2)

	assert.Equal(t, []StepEventType{EventThinking, EventComplete}, events)
}

func TestPlannerToolThenAnswer(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{
		toolCallReply(call("c1", "get_weather", "Paris")),
		answer("Final Answer: It is sunny in Paris."),
	}}
	tools := &fakeTools{fns: map[string]func(context.Context, string) (string, error){
		"get_weather": func(_ context.Context, arg string) (string, error) { return arg + ": sunny", nil },
	}}
	store := session.NewStore(session.Options{})

	res, err := newTestPlanner(provider, tools, store, PlannerConfig{}).Run(context.Background(), "s", "weather in Paris?")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Paris.", res.Text)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []string{"get_weather"}, res.ToolsUsed)

	history := store.History("s")
	require.Len(t, history, 4)
	assert.Equal(t, "c1", history[1].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, history[2].Role)
	assert.Equal(t, "c1", history[2].ToolCallID)
	assert.Equal(t, "Paris: sunny", history[2].Content)

	// The second submission carried the tool result.
	require.Len(t, provider.reqs, 2)
	assert.Len(t, provider.reqs[1].Messages, 3)
}

func TestPlannerToolResultsInRequestOrder(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{
		toolCallReply(call("a", "web_search", "slow"), call("b", "get_weather", "fast"), call("c", "missing", "x")),
		answer("Final Answer: done"),
	}}
	tools := &fakeTools{fns: map[string]func(context.Context, string) (string, error){
		"web_search": func(_ context.Context, arg string) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "search:" + arg, nil
		},
		"get_weather": func(_ context.Context, arg string) (string, error) { return "weather:" + arg, nil },
	}}
	store := session.NewStore(session.Options{})

	_, err := newTestPlanner(provider, tools, store, PlannerConfig{MaxParallelTools: 3}).Run(context.Background(), "s", "do all")
	require.NoError(t, err)

	history := store.History("s")
	require.Len(t, history, 6)
	assert.Equal(t, "a", history[2].ToolCallID)
	assert.Equal(t, "search:slow", history[2].Content)
	assert.Equal(t, "b", history[3].ToolCallID)
	assert.Equal(t, "c", history[4].ToolCallID)
	assert.Equal(t, "Error: tool not found: missing", history[4].Content)
}

func TestPlannerMalformedResponse(t *testing.T) {
	tests := []struct {
		name        string
		reply       scriptedResult
		historySize int
	}{
		{"plain text", answer("I think maybe"), 3},
		{"empty", answer(""), 2},
		{"nil message", scriptedResult{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{results: []scriptedResult{tt.reply}}
			store := session.NewStore(session.Options{})

			res, err := newTestPlanner(provider, &fakeTools{}, store, PlannerConfig{}).Run(context.Background(), "s", "hi")
			require.NoError(t, err)
			assert.Equal(t, ClarificationMessage, res.Text)
			assert.Equal(t, session.OutcomeNeedsClarification, res.Outcome)
			assert.Equal(t, 1, provider.Calls(), "no further engine calls")

			history := store.History("s")
			require.Len(t, history, tt.historySize)
			assert.Equal(t, ClarificationMessage, history[len(history)-1].Content)
		})
	}
}

func TestPlannerSanitizesFinalAnswer(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{answer("Final Answer: bad \x07 bell")}}
	store := session.NewStore(session.Options{})

	res, err := newTestPlanner(provider, &fakeTools{}, store, PlannerConfig{}).Run(context.Background(), "s", "hi")
	require.NoError(t, err)
	assert.Equal(t, SanitizedPlaceholder, res.Text)
	assert.Equal(t, res.Text, Sanitize(res.Text))
}

func TestPlannerIterationLimit(t *testing.T) {
	for _, limit := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			provider := &scriptedProvider{results: []scriptedResult{toolCallReply(call("x", "get_weather", "Oslo"))}}
			tools := &fakeTools{fns: map[string]func(context.Context, string) (string, error){
				"get_weather": func(context.Context, string) (string, error) { return "ok", nil },
			}}
			store := session.NewStore(session.Options{})

			res, err := newTestPlanner(provider, tools, store, PlannerConfig{MaxIterations: limit}).Run(context.Background(), "s", "loop")
			require.ErrorIs(t, err, ErrIterationLimit)
			assert.True(t, res.LimitReached)
			assert.Equal(t, IterationLimitMessage, res.Text)
			assert.Equal(t, limit, provider.Calls(), "exactly the configured number of submissions")
			assert.Equal(t, limit, res.Iterations)

			history := store.History("s")
			assert.Equal(t, IterationLimitMessage, history[len(history)-1].Content)
		})
	}
}

func TestPlannerRateLimitExhausted(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{rateLimited()}}
	store := session.NewStore(session.Options{})

	_, err := newTestPlanner(provider, &fakeTools{}, store, PlannerConfig{}).Run(context.Background(), "s", "hi")
	require.ErrorIs(t, err, ErrRateLimitExhausted)
	assert.Equal(t, 3, provider.Calls())
	assert.Len(t, store.History("s"), 1, "only the user message is recorded")
}

func TestPlannerEngineError(t *testing.T) {
	boom := errors.New("engine down")
	provider := &scriptedProvider{results: []scriptedResult{{err: boom}}}

	var errEvent *StepEvent
	p := newTestPlanner(provider, &fakeTools{}, session.NewStore(session.Options{}), PlannerConfig{
		OnStep: func(e *StepEvent) {
			if e.Type == EventError {
				errEvent = e
			}
		},
	})

	_, err := p.Run(context.Background(), "s", "hi")
	require.ErrorIs(t, err, boom)
	require.NotNil(t, errEvent)
	assert.Equal(t, "engine down", errEvent.Error)
}

func TestPlannerCancelledDuringTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{results: []scriptedResult{
		toolCallReply(call("a", "web_search", "q"), call("b", "get_weather", "Rome")),
	}}
	tools := &fakeTools{fns: map[string]func(context.Context, string) (string, error){
		"web_search": func(ctx context.Context, _ string) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		},
		"get_weather": func(context.Context, string) (string, error) { return "ok", nil },
	}}
	store := session.NewStore(session.Options{})

	_, err := newTestPlanner(provider, tools, store, PlannerConfig{}).Run(ctx, "s", "both")
	require.ErrorIs(t, err, context.Canceled)

	history := store.History("s")
	require.Len(t, history, 1, "no partial tool step is recorded")
	assert.Equal(t, llm.RoleUser, history[0].Role)
}

func TestPlannerCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{results: []scriptedResult{answer("Final Answer: never")}}
	_, err := newTestPlanner(provider, &fakeTools{}, session.NewStore(session.Options{}), PlannerConfig{}).Run(ctx, "s", "hi")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, provider.Calls())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitingPlan", StateAwaitingPlan.String())
	assert.Equal(t, "AwaitingToolResult", StateAwaitingToolResult.String())
	assert.Equal(t, "Respond", StateRespond.String())
	assert.Equal(t, "Failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
