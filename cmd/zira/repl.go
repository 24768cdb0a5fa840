package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/normanking/zira/internal/metrics"
	"github.com/normanking/zira/internal/orchestrator"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INTERACTIVE MODE (ROOT)
// ═══════════════════════════════════════════════════════════════════════════════

func runREPL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	ui := newConsole(os.Stdout, cfg.Assistant.Name, cfg.Assistant.RenderMarkdown, verbose)

	a, err := newApp(ctx, cfg, appOptions{confirm: ui.confirm(in), onStep: ui.step})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	id := resolveSession(ctx, a)
	log.Info("REPL using session %s", id)

	ui.say(cfg.Assistant.Greeting)
	dashboard := metrics.NewDashboard(a.recorder.Collector())

	for {
		ui.prompt(a.router.Mode().VoiceEnabled())

		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			if eof {
				fmt.Println()
				ui.say(cfg.Assistant.Farewell)
				return nil
			}
			continue
		case "exit", "quit":
			ui.say(cfg.Assistant.Farewell)
			return nil
		case ":stats":
			fmt.Println(dashboard.Render())
			continue
		case ":session":
			ui.muted("Session: " + id)
			continue
		}

		a.sweep()
		out := a.orch.Handle(ctx, text, id)
		ui.show(out)

		if ctx.Err() != nil || eof {
			ui.say(cfg.Assistant.Farewell)
			return nil
		}
	}
}

// resolveSession returns the --session id, restoring its checkpoint, or a new
// random id.
func resolveSession(ctx context.Context, a *app) string {
	if sessionID == "" {
		return uuid.NewString()
	}
	restored, err := a.sessions.Restore(ctx, sessionID)
	if err != nil {
		log.Warn("Could not restore session %s: %v", sessionID, err)
	} else if restored {
		log.Info("Resumed session %s", sessionID)
	}
	return sessionID
}

// ═══════════════════════════════════════════════════════════════════════════════
// ASK COMMAND (One-shot query)
// ═══════════════════════════════════════════════════════════════════════════════

func askCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask Zira a question (one-shot query)",
		Long: `Run one input through the router and the reasoning engine.

Examples:
  zira ask "weather in Lisbon"
  zira ask "search golang errgroup"
  zira ask --session work "what did we decide about the outage?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := newApp(ctx, cfg, appOptions{})
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			id := resolveSession(ctx, a)
			out := a.orch.Handle(ctx, strings.Join(args, " "), id)
			fmt.Println(out.Text)

			if out.Kind != orchestrator.KindFinalAnswer {
				return fmt.Errorf("query failed: %s", out.Kind)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall time limit")
	return cmd
}
