// Package tools holds the tool registry the planner invokes and the built-in
// tools Zira ships with.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/logging"
)

var (
	// ErrToolNotFound is returned when invoking a name nobody registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool is returned by Register when the name is taken.
	ErrDuplicateTool = errors.New("tool already registered")
)

// Tool is a named capability the reasoning engine may request.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, arg string) (string, error)
}

// ═══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ═══════════════════════════════════════════════════════════════════════════════

type funcTool struct {
	name string
	desc string
	fn   func(ctx context.Context, arg string) (string, error)
}

func (f *funcTool) Name() string        { return f.name }
func (f *funcTool) Description() string { return f.desc }

func (f *funcTool) Invoke(ctx context.Context, arg string) (string, error) {
	return f.fn(ctx, arg)
}

// Func wraps a synchronous function as a Tool. The function runs on its own
// goroutine so a cancelled context returns promptly even if fn does not.
// A panic in fn is re-raised on the calling goroutine.
func Func(name, desc string, fn func(arg string) (string, error)) Tool {
	return &funcTool{
		name: name,
		desc: desc,
		fn: func(ctx context.Context, arg string) (string, error) {
			type result struct {
				out      string
				err      error
				panicked any
			}
			done := make(chan result, 1)
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						done <- result{panicked: rec}
					}
				}()
				out, err := fn(arg)
				done <- result{out: out, err: err}
			}()
			select {
			case r := <-done:
				if r.panicked != nil {
					panic(r.panicked)
				}
				return r.out, r.err
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
}

// ContextFunc wraps a context-aware function as a Tool.
func ContextFunc(name, desc string, fn func(ctx context.Context, arg string) (string, error)) Tool {
	return &funcTool{name: name, desc: desc, fn: fn}
}

// ═══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ═══════════════════════════════════════════════════════════════════════════════

// Registry owns the tools available to the planner and the router.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	observe func(name string, err error, took time.Duration)

	statsMu sync.Mutex
	stats   RegistryStats
}

// RegistryStats tracks invocation counts.
type RegistryStats struct {
	TotalInvocations int64
	SuccessCount     int64
	FailureCount     int64
	PanicCount       int64
	TotalDuration    time.Duration
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds every invocation. Zero disables the bound.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithObserver is called after every invocation, including failed lookups.
func WithObserver(fn func(name string, err error, took time.Duration)) RegistryOption {
	return func(r *Registry) {
		r.observe = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for wiring code that cannot recover.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Catalog describes the registered tools in registration order.
func (r *Registry) Catalog() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description()})
	}
	return specs
}

// Invoke runs the named tool. A panicking tool is reported as an error.
func (r *Registry) Invoke(ctx context.Context, name, arg string) (output string, err error) {
	log := logging.Global().WithComponent("Tools")
	start := time.Now()

	defer func() {
		took := time.Since(start)
		r.record(err, took)
		if r.observe != nil {
			r.observe(name, err, took)
		}
	}()

	tool, ok := r.Get(name)
	if !ok {
		log.Warn("unknown tool requested: %s", name)
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.statsMu.Lock()
			r.stats.PanicCount++
			r.statsMu.Unlock()
			log.Error("tool %s panicked: %v", name, rec)
			output = ""
			err = fmt.Errorf("tool %s panicked: %v", name, rec)
		}
	}()

	log.Debug("invoking %s", name)
	output, err = tool.Invoke(ctx, arg)
	if err != nil {
		log.Warn("tool %s failed after %v: %v", name, time.Since(start), err)
		return "", err
	}
	return output, nil
}

func (r *Registry) record(err error, took time.Duration) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	r.stats.TotalInvocations++
	r.stats.TotalDuration += took
	if err != nil {
		r.stats.FailureCount++
	} else {
		r.stats.SuccessCount++
	}
}

// Stats returns a snapshot of the invocation counters.
func (r *Registry) Stats() RegistryStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	return r.stats
}
