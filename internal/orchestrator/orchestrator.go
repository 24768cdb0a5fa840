// Package orchestrator is the single entry point for user input. Each call to
// Handle runs the command router first and falls through to the planner,
// then maps every failure onto an Outcome the REPL can show as-is.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/normanking/zira/internal/agent"
	"github.com/normanking/zira/internal/logging"
	"github.com/normanking/zira/internal/metrics"
	"github.com/normanking/zira/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OUTCOMES
// ═══════════════════════════════════════════════════════════════════════════════

// Kind classifies an Outcome.
type Kind string

const (
	KindFinalAnswer   Kind = "final_answer"
	KindRateLimited   Kind = "rate_limited"
	KindInternalError Kind = "internal_error"
	KindBusy          Kind = "busy"
)

// Source names the layer that produced an Outcome.
type Source string

const (
	SourceGuard   Source = "guard"   // unrouted input rejected before planning
	SourceRouter  Source = "router"  // deterministic command
	SourcePlanner Source = "planner" // reasoning engine loop
)

// User-facing texts.
const (
	InvalidInputMessage = "Invalid input detected—please use standard characters only."
	RateLimitedMessage  = "Error: the reasoning engine is being rate-limited. Please try again in a few seconds."
	CancelledMessage    = "Request cancelled."
	InternalMessage     = "An error occurred while processing your request. Please try again."
	BusyMessage         = "Still working on your previous request."
)

// Outcome is the result of handling one input. Text is always safe to show.
type Outcome struct {
	Kind           Kind     `json:"kind"`
	Text           string   `json:"text"`
	Source         Source   `json:"source,omitempty"`
	RetryExhausted bool     `json:"retry_exhausted,omitempty"`
	ToolsUsed      []string `json:"tools_used,omitempty"`
	Err            error    `json:"-"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ═══════════════════════════════════════════════════════════════════════════════

// Router answers deterministic commands. *router.Router satisfies it.
type Router interface {
	Route(ctx context.Context, raw string) router.Result
}

// Planner runs the reasoning loop. *agent.Planner satisfies it.
type Planner interface {
	Run(ctx context.Context, sessionID, input string) (*agent.Result, error)
}

// Checkpointer persists a session after a planner cycle. *session.Store
// satisfies it.
type Checkpointer interface {
	Checkpoint(ctx context.Context, sessionID string) error
}

var (
	_ Router  = (*router.Router)(nil)
	_ Planner = (*agent.Planner)(nil)
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORCHESTRATOR
// ═══════════════════════════════════════════════════════════════════════════════

// Orchestrator coordinates router, planner and session persistence.
type Orchestrator struct {
	router            Router
	planner           Planner
	checkpointer      Checkpointer
	checkpointTimeout time.Duration
	recorder          *metrics.Recorder
	log               *logging.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCheckpointer saves the session after each planner cycle.
func WithCheckpointer(c Checkpointer) Option {
	return func(o *Orchestrator) {
		o.checkpointer = c
	}
}

// WithCheckpointTimeout bounds each checkpoint write (default 5s).
func WithCheckpointTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.checkpointTimeout = d
		}
	}
}

// WithRecorder reports outcomes to Prometheus.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// New creates an Orchestrator. Either dependency may be nil: without a router
// everything goes to the planner, and without a planner unrouted input is an
// internal error.
func New(r Router, p Planner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:            r,
		planner:           p,
		checkpointTimeout: 5 * time.Second,
		log:               logging.Global().WithComponent("Orchestrator"),
		inFlight:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes raw for sessionID. Router and planner both see the
// whitespace-normalized input, and the character guard applies only to input
// the router did not handle. Handle never panics and never returns a raw
// error: failures are folded into the Outcome. Calls for the same session are
// single-flight; a concurrent second call returns KindBusy at once.
func (o *Orchestrator) Handle(ctx context.Context, raw, sessionID string) (out Outcome) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("Recovered panic for session %s: %v", sessionID, rec)
			out = Outcome{
				Kind:   KindInternalError,
				Text:   InternalMessage,
				Source: out.Source,
				Err:    fmt.Errorf("orchestrator panic: %v", rec),
			}
		}
		if out.Kind != KindBusy {
			o.recorder.ObserveOrchestration(string(out.Source), string(out.Kind), time.Since(start))
		}
	}()

	input := router.Normalize(raw)

	if !o.acquire(sessionID) {
		o.log.Warn("Session %s is busy", sessionID)
		return Outcome{Kind: KindBusy, Text: BusyMessage}
	}
	defer o.release(sessionID)

	if o.router != nil {
		out.Source = SourceRouter
		if res := o.router.Route(ctx, input); res.Handled {
			o.recorder.ObserveRouterHit(res.Intent.String())
			return Outcome{Kind: KindFinalAnswer, Text: res.Text, Source: SourceRouter, Err: res.Err}
		}
	}

	if agent.ContainsControlChars(input) {
		o.log.Warn("Rejected input with control characters for session %s", sessionID)
		return Outcome{Kind: KindFinalAnswer, Text: InvalidInputMessage, Source: SourceGuard}
	}

	out.Source = SourcePlanner
	if o.planner == nil {
		return Outcome{
			Kind:   KindInternalError,
			Text:   InternalMessage,
			Source: SourcePlanner,
			Err:    errors.New("no planner configured"),
		}
	}

	result, err := o.planner.Run(ctx, sessionID, input)
	o.checkpoint(ctx, sessionID)
	return o.mapPlannerResult(sessionID, result, err)
}

func (o *Orchestrator) mapPlannerResult(sessionID string, result *agent.Result, err error) Outcome {
	out := Outcome{Source: SourcePlanner, Err: err}
	if result != nil {
		out.ToolsUsed = result.ToolsUsed
	}

	switch {
	case err == nil:
		out.Kind = KindFinalAnswer
		out.Text = result.Text

	case errors.Is(err, agent.ErrIterationLimit):
		out.Kind = KindFinalAnswer
		out.Text = agent.IterationLimitMessage
		if result != nil && result.Text != "" {
			out.Text = result.Text
		}

	case errors.Is(err, agent.ErrRateLimitExhausted):
		o.log.Warn("Rate limit exhausted for session %s", sessionID)
		out.Kind = KindRateLimited
		out.Text = RateLimitedMessage
		out.RetryExhausted = true

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.log.Info("Request cancelled for session %s", sessionID)
		out.Kind = KindInternalError
		out.Text = CancelledMessage

	default:
		o.log.Error("Planner failed for session %s: %v", sessionID, err)
		out.Kind = KindInternalError
		out.Text = InternalMessage
	}
	return out
}

// checkpoint saves the session on a context detached from the request so a
// cancelled turn still persists what it appended.
func (o *Orchestrator) checkpoint(ctx context.Context, sessionID string) {
	if o.checkpointer == nil {
		return
	}
	saveCtx, cancel := logging.DetachContextWithTimeout(ctx, o.checkpointTimeout)
	defer cancel()

	if err := o.checkpointer.Checkpoint(saveCtx, sessionID); err != nil {
		o.log.Warn("Checkpoint failed for session %s: %v", sessionID, err)
	}
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return false
	}
	o.inFlight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sessionID)
}

// Stats describes the orchestrator's wiring and load.
type Stats struct {
	HasRouter       bool `json:"has_router"`
	HasPlanner      bool `json:"has_planner"`
	HasCheckpointer bool `json:"has_checkpointer"`
	InFlight        int  `json:"in_flight"`
}

// Stats returns a snapshot of Stats.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		HasRouter:       o.router != nil,
		HasPlanner:      o.planner != nil,
		HasCheckpointer: o.checkpointer != nil,
		InFlight:        len(o.inFlight),
	}
}
