package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PROCESS RUNNER
// ═══════════════════════════════════════════════════════════════════════════════

// Runner launches host processes. Tests swap it for a recorder.
type Runner interface {
	// Start launches the process without waiting for it.
	Start(ctx context.Context, name string, args ...string) error
	// Run waits for the process and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background so launched apps do not linger as zombies.
	go func() { _ = cmd.Wait() }()
	return nil
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// ═══════════════════════════════════════════════════════════════════════════════
// SYSTEM TOOLS
// ═══════════════════════════════════════════════════════════════════════════════

// System opens and closes applications and URLs on the host.
type System struct {
	runner Runner
	goos   string
}

// SystemOption configures System.
type SystemOption func(*System)

// WithRunner replaces the process runner.
func WithRunner(r Runner) SystemOption {
	return func(s *System) {
		s.runner = r
	}
}

// WithGOOS overrides the detected operating system.
func WithGOOS(goos string) SystemOption {
	return func(s *System) {
		s.goos = goos
	}
}

// NewSystem creates the system tool set for the running platform.
func NewSystem(opts ...SystemOption) *System {
	s := &System{
		runner: ExecRunner{},
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools returns open_application, close_application and open_website.
func (s *System) Tools() []Tool {
	return []Tool{
		ContextFunc("open_application", "Opens the specified application.", s.OpenApplication),
		ContextFunc("close_application", "Attempts to close the specified application.", s.CloseApplication),
		ContextFunc("open_website", "Opens the specified website.", s.OpenWebsite),
	}
}

// OpenApplication starts the named program.
func (s *System) OpenApplication(ctx context.Context, app string) (string, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return "", fmt.Errorf("application name is required")
	}
	if err := s.runner.Start(ctx, app); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("application '%s' not found", app)
		}
		return "", fmt.Errorf("open %s: %w", app, err)
	}
	return fmt.Sprintf("Opening %s.", app), nil
}

// CloseApplication terminates processes matching app. Windows uses taskkill
// on the image name, everything else pkill -f on the base name.
func (s *System) CloseApplication(ctx context.Context, app string) (string, error) {
	proc := strings.TrimSpace(app)
	if proc == "" {
		return "", fmt.Errorf("application name is required")
	}

	var name string
	var args []string
	if s.goos == "windows" {
		if !strings.HasSuffix(strings.ToLower(proc), ".exe") {
			proc += ".exe"
		}
		name, args = "taskkill", []string{"/IM", proc, "/F"}
	} else {
		base := strings.TrimSuffix(proc, filepath.Ext(proc))
		name, args = "pkill", []string{"-f", base}
	}

	out, err := s.runner.Run(ctx, name, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("couldn't close %s (code %d): %s", app, exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return "", fmt.Errorf("close %s: %w", app, err)
	}
	return fmt.Sprintf("Closed `%s` successfully.", strings.TrimSpace(app)), nil
}

// OpenWebsite opens url in the default browser.
func (s *System) OpenWebsite(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("url is required")
	}
	if err := s.Open(ctx, url); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opening website: %s.", url), nil
}

// Open hands target (a URL or a filesystem path) to the platform opener.
func (s *System) Open(ctx context.Context, target string) error {
	name, args := openerCommand(s.goos, target)
	if err := s.runner.Start(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

func openerCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
