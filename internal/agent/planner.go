// Package agent drives the reasoning engine: the Invoker absorbs rate limits
// and the Planner runs the bounded plan/tool loop over a session's history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/logging"
	"github.com/normanking/zira/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STEP EVENTS
// ═══════════════════════════════════════════════════════════════════════════════

// StepCallback is called for each step the planner takes.
type StepCallback func(event *StepEvent)

// StepEvent represents an event during planning.
type StepEvent struct {
	Type      StepEventType `json:"type"`
	Step      int           `json:"step"`
	Message   string        `json:"message"`
	ToolName  string        `json:"tool_name,omitempty"`
	ToolInput string        `json:"tool_input,omitempty"`
	Output    string        `json:"output,omitempty"`
	Success   bool          `json:"success,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// StepEventType identifies the type of step event.
type StepEventType string

const (
	EventThinking   StepEventType = "thinking"    // Waiting on the reasoning engine
	EventToolCall   StepEventType = "tool_call"   // A tool is being invoked
	EventToolResult StepEventType = "tool_result" // A tool returned
	EventComplete   StepEventType = "complete"    // Planner reached Respond
	EventError      StepEventType = "error"       // Planner failed
)

// ═══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ═══════════════════════════════════════════════════════════════════════════════

// State is a planning state.
type State int

const (
	StateAwaitingPlan State = iota
	StateAwaitingToolResult
	StateRespond
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingPlan:
		return "AwaitingPlan"
	case StateAwaitingToolResult:
		return "AwaitingToolResult"
	case StateRespond:
		return "Respond"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrIterationLimit is returned alongside IterationLimitMessage when the engine
// keeps requesting tools after MaxIterations submissions.
var ErrIterationLimit = errors.New("planning iteration limit reached")

const (
	// ClarificationMessage is appended when the engine returns neither tool
	// calls nor a final answer.
	ClarificationMessage = "Error: The agent could not determine a valid tool action or final answer."

	// IterationLimitMessage is the text returned with ErrIterationLimit.
	IterationLimitMessage = "I could not complete this request within the iteration limit."
)

// Memory is the session history the planner reads and appends to.
type Memory interface {
	History(sessionID string) []llm.Message
	Append(sessionID string, msgs ...llm.Message)
	SetOutcome(sessionID string, outcome session.Outcome)
}

// ToolExecutor runs tools requested by the engine.
type ToolExecutor interface {
	Catalog() []llm.ToolSpec
	Invoke(ctx context.Context, name, arg string) (string, error)
}

// Engine submits planning requests. *Invoker satisfies it.
type Engine interface {
	Invoke(ctx context.Context, req *llm.Request) (*llm.Message, error)
}

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	// Persona is placed ahead of the planning instructions.
	Persona string
	// MaxIterations caps engine submissions per input (default 8).
	MaxIterations int
	// MaxParallelTools bounds concurrent tool calls in one step (default 4).
	MaxParallelTools int
	// OnStep receives step events.
	OnStep StepCallback
}

// Result is the planner's answer for one input.
type Result struct {
	Text       string
	Outcome    session.Outcome
	Iterations int
	ToolsUsed  []string
	// LimitReached is set when the loop stopped at MaxIterations; Run then
	// also returns ErrIterationLimit.
	LimitReached bool
}

// Planner runs the plan/tool loop for one session at a time.
type Planner struct {
	engine Engine
	tools  ToolExecutor
	memory Memory
	config PlannerConfig
	log    *logging.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(engine Engine, tools ToolExecutor, memory Memory, cfg PlannerConfig) *Planner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 8
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = 4
	}
	return &Planner{
		engine: engine,
		tools:  tools,
		memory: memory,
		config: cfg,
		log:    logging.Global().WithComponent("Planner"),
	}
}

// emit sends a step event to the callback if configured.
func (p *Planner) emit(event *StepEvent) {
	if p.config.OnStep != nil {
		p.config.OnStep(event)
	}
}

// Run appends input to the session and drives the state machine until it
// responds or fails. Errors from the Engine (including
// *RateLimitExhaustedError) and context errors are returned unchanged. At the
// iteration limit the Result carries IterationLimitMessage and the error is
// ErrIterationLimit.
func (p *Planner) Run(ctx context.Context, sessionID, input string) (*Result, error) {
	p.memory.Append(sessionID, llm.UserMessage(input))

	result := &Result{}
	state := StateAwaitingPlan
	var pending *llm.Message
	var failure error

	for {
		if state != StateRespond && state != StateFailed {
			if err := ctx.Err(); err != nil {
				p.log.Info("Context cancelled in %s for session %s", state, sessionID)
				failure = err
				state = StateFailed
			}
		}

		switch state {
		case StateAwaitingPlan:
			if result.Iterations >= p.config.MaxIterations {
				p.log.Warn("Iteration limit (%d) reached for session %s", p.config.MaxIterations, sessionID)
				p.memory.Append(sessionID, llm.AssistantMessage(IterationLimitMessage))
				result.Text = IterationLimitMessage
				result.LimitReached = true
				state = StateRespond
				continue
			}
			result.Iterations++

			reply, err := p.plan(ctx, sessionID, result.Iterations)
			if err != nil {
				failure = err
				state = StateFailed
				continue
			}

			switch {
			case reply.HasToolCalls():
				p.memory.SetOutcome(sessionID, session.OutcomeToolCallFound)
				pending = reply
				state = StateAwaitingToolResult

			case IsFinalAnswer(reply.Content):
				p.memory.Append(sessionID, *reply)
				p.memory.SetOutcome(sessionID, session.OutcomeFinalAnswer)
				result.Outcome = session.OutcomeFinalAnswer
				result.Text = Sanitize(StripFinalAnswer(reply.Content))
				state = StateRespond

			default:
				// Fail secure on malformed output.
				p.log.Warn("No tool call or final answer in response for session %s", sessionID)
				msgs := []llm.Message{llm.AssistantMessage(ClarificationMessage)}
				if strings.TrimSpace(reply.Content) != "" {
					msgs = append([]llm.Message{*reply}, msgs...)
				}
				p.memory.Append(sessionID, msgs...)
				p.memory.SetOutcome(sessionID, session.OutcomeNeedsClarification)
				result.Outcome = session.OutcomeNeedsClarification
				result.Text = ClarificationMessage
				state = StateRespond
			}

		case StateAwaitingToolResult:
			results := p.runTools(ctx, result.Iterations, pending.ToolCalls)
			if err := ctx.Err(); err != nil {
				// A cancelled step is discarded whole.
				failure = err
				state = StateFailed
				continue
			}
			p.memory.Append(sessionID, append([]llm.Message{*pending}, results...)...)
			for _, call := range pending.ToolCalls {
				result.ToolsUsed = append(result.ToolsUsed, call.Name)
			}
			pending = nil
			state = StateAwaitingPlan

		case StateRespond:
			p.emit(&StepEvent{Type: EventComplete, Step: result.Iterations, Message: result.Text, Success: !result.LimitReached})
			if result.LimitReached {
				return result, ErrIterationLimit
			}
			return result, nil

		case StateFailed:
			p.emit(&StepEvent{Type: EventError, Step: result.Iterations, Error: failure.Error()})
			return result, failure
		}
	}
}

// plan submits the history with the planning prompt.
func (p *Planner) plan(ctx context.Context, sessionID string, step int) (*llm.Message, error) {
	catalog := p.tools.Catalog()
	p.emit(&StepEvent{Type: EventThinking, Step: step, Message: "Planning"})

	reply, err := p.engine.Invoke(ctx, &llm.Request{
		SystemPrompt: PlanningPrompt(p.config.Persona, catalog),
		Messages:     p.memory.History(sessionID),
		Tools:        catalog,
	})
	if err != nil {
		p.log.Error("Planning step %d failed for session %s: %v", step, sessionID, err)
		return nil, err
	}
	if reply == nil {
		reply = &llm.Message{}
	}
	reply.Role = llm.RoleAssistant
	p.log.Debug("Step %d: %d tool calls, %d chars", step, len(reply.ToolCalls), len(reply.Content))
	return reply, nil
}

// runTools invokes calls concurrently and returns their tool messages in
// request order.
func (p *Planner) runTools(ctx context.Context, step int, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxParallelTools)

	for i, call := range calls {
		g.Go(func() error {
			arg := llm.ToolInput(call.Arguments)
			p.emit(&StepEvent{Type: EventToolCall, Step: step, ToolName: call.Name, ToolInput: arg})

			output, err := p.tools.Invoke(gctx, call.Name, arg)
			if err != nil {
				p.log.Warn("Tool %s failed: %v", call.Name, err)
				output = "Error: " + err.Error()
			}
			results[i] = llm.ToolResultMessage(call, output)

			p.emit(&StepEvent{
				Type:     EventToolResult,
				Step:     step,
				ToolName: call.Name,
				Output:   output,
				Success:  err == nil,
			})
			return nil
		})
	}
	_ = g.Wait()

	return results
}
