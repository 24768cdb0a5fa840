package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/normanking/zira/internal/agent"
	"github.com/normanking/zira/internal/bookmarks"
	"github.com/normanking/zira/internal/config"
	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/metrics"
	"github.com/normanking/zira/internal/orchestrator"
	"github.com/normanking/zira/internal/router"
	"github.com/normanking/zira/internal/session"
	"github.com/normanking/zira/internal/tools"
)

// ═══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ═══════════════════════════════════════════════════════════════════════════════

// app holds every long-lived component of one zira process.
type app struct {
	cfg          *config.Config
	orch         *orchestrator.Orchestrator
	router       *router.Router
	sessions     *session.Store
	checkpointer *session.SQLiteCheckpointer
	registry     *tools.Registry
	recorder     *metrics.Recorder
	metricsSrv   *http.Server

	closers []func() error
}

// appOptions carries the REPL hooks the bookmark handlers need.
type appOptions struct {
	confirm bookmarks.Confirm
	onStep  agent.StepCallback
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a.recorder = metrics.NewRecorder()
	if cfg.Metrics.Enabled {
		a.serveMetrics()
	}

	// Sessions
	sessOpts := session.Options{
		MaxMessages: cfg.Session.MaxMessages,
		IdleTTL:     cfg.Session.IdleTTL,
	}
	if cfg.Session.Checkpoint.Enabled {
		cp, err := session.OpenSQLiteCheckpointer(cfg.Session.Checkpoint.DBPath)
		if err != nil {
			return nil, err
		}
		a.checkpointer = cp
		a.closers = append(a.closers, cp.Close)
		sessOpts.Checkpointer = cp
	}
	a.sessions = session.NewStore(sessOpts)

	// Tools
	a.registry = tools.NewRegistry(
		tools.WithTimeout(cfg.Tools.DefaultTimeout),
		tools.WithObserver(a.recorder.ObserveTool),
	)
	system := tools.NewSystem()
	if err := a.registerTools(system); err != nil {
		a.Close()
		return nil, err
	}

	// Bookmarks
	storage, err := bookmarks.NewStorage(cfg.Bookmarks.File)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open bookmarks: %w", err)
	}
	bmOpts := []bookmarks.Option{bookmarks.WithOpener(system.Open)}
	if opts.confirm != nil {
		bmOpts = append(bmOpts, bookmarks.WithConfirm(opts.confirm))
	}
	commands := bookmarks.NewCommands(storage, cfg.Assistant.Name, bmOpts...)

	a.router = router.New(cfg.Assistant.Name, nil, a.registry, router.WithBookmarks(commands))

	// Reasoning engine
	planner, err := a.newPlanner(ctx, opts.onStep)
	if err != nil {
		log.Warn("Reasoning engine unavailable: %v", err)
	}

	orchOpts := []orchestrator.Option{orchestrator.WithRecorder(a.recorder)}
	if a.checkpointer != nil {
		orchOpts = append(orchOpts, orchestrator.WithCheckpointer(a.sessions))
	}
	// A nil *agent.Planner must not become a non-nil interface.
	var p orchestrator.Planner
	if planner != nil {
		p = planner
	}
	a.orch = orchestrator.New(a.router, p, orchOpts...)
	return a, nil
}

func (a *app) registerTools(system *tools.System) error {
	cfg := a.cfg.Tools

	toolset := append(system.Tools(),
		tools.NewWeather(tools.WithWeatherEndpoint(cfg.WeatherEndpoint)),
		tools.NewWebSearch(tools.WithSearchEndpoint(cfg.SearchEndpoint)),
	)

	facts, err := tools.NewFactSheet(cfg.FactSheetPath,
		tools.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
		tools.WithTopK(cfg.RetrieverK),
	)
	if err != nil {
		return fmt.Errorf("load fact sheet: %w", err)
	}
	if err := facts.Watch(); err != nil {
		log.Warn("Fact sheet changes will not be picked up: %v", err)
	}
	a.closers = append(a.closers, facts.Close)
	toolset = append(toolset, facts)

	cases, err := tools.OpenCaseLog(cfg.CasesDBPath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cases.Close)
	toolset = append(toolset, cases)

	for _, t := range toolset {
		if err := a.registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) newPlanner(ctx context.Context, onStep agent.StepCallback) (*agent.Planner, error) {
	name, pc := a.cfg.Provider()
	provider, err := llm.NewProvider(ctx, name, &llm.ProviderConfig{
		Name:        name,
		Endpoint:    pc.Endpoint,
		APIKey:      pc.APIKey,
		Model:       pc.Model,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		TopP:        pc.TopP,
		TopK:        pc.TopK,
		Timeout:     pc.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		return nil, fmt.Errorf("provider %s is not configured", name)
	}

	retry := a.cfg.Agent.Retry
	invoker := agent.NewInvoker(provider, agent.RetryConfig{
		MaxAttempts: retry.MaxAttempts,
		BaseDelay:   retry.BaseDelay,
		JitterUnit:  retry.JitterUnit,
	}, agent.WithRetryNotify(a.recorder.ObserveRetry))

	return agent.NewPlanner(invoker, a.registry, a.sessions, agent.PlannerConfig{
		Persona:          a.cfg.Assistant.SystemPrompt,
		MaxIterations:    a.cfg.Agent.MaxIterations,
		MaxParallelTools: a.cfg.Agent.MaxParallelTools,
		OnStep:           onStep,
	}), nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.recorder.Handler())
	a.metricsSrv = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped: %v", err)
		}
	}()
	log.Info("Serving metrics on http://%s/metrics", a.cfg.Metrics.Addr)
}

// sweep drops idle sessions and refreshes the session gauge.
func (a *app) sweep() {
	a.sessions.Sweep(time.Now())
	a.recorder.SetActiveSessions(len(a.sessions.IDs()))
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("Close: %v", err)
		}
	}
	a.closers = nil
}
