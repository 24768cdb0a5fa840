package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/zira/internal/agent"
	"github.com/normanking/zira/internal/bookmarks"
	"github.com/normanking/zira/internal/orchestrator"
)

// console renders REPL output.
type console struct {
	out      io.Writer
	name     string
	renderer *glamour.TermRenderer
	verbose  bool

	promptStyle lipgloss.Style
	nameStyle   lipgloss.Style
	errorStyle  lipgloss.Style
	mutedStyle  lipgloss.Style
}

func newConsole(out io.Writer, name string, markdown, verbose bool) *console {
	c := &console{
		out:         out,
		name:        name,
		verbose:     verbose,
		promptStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		nameStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		mutedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
	if markdown {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
			glamour.WithPreservedNewLines(),
		)
		if err != nil {
			log.Warn("Markdown rendering disabled: %v", err)
		} else {
			c.renderer = renderer
		}
	}
	return c
}

func (c *console) prompt(voice bool) {
	label := "You"
	if voice {
		label = "You (voice)"
	}
	fmt.Fprint(c.out, c.promptStyle.Render(label+": "))
}

func (c *console) say(text string) {
	fmt.Fprintf(c.out, "%s %s\n", c.nameStyle.Render(c.name+":"), text)
}

func (c *console) muted(text string) {
	fmt.Fprintln(c.out, c.mutedStyle.Render(text))
}

// show prints an orchestration outcome.
func (c *console) show(out orchestrator.Outcome) {
	switch out.Kind {
	case orchestrator.KindFinalAnswer:
		c.say(c.render(out.Text))
	case orchestrator.KindBusy:
		c.muted(out.Text)
	default:
		c.say(c.errorStyle.Render(out.Text))
	}
}

func (c *console) render(text string) string {
	if c.renderer == nil {
		return text
	}
	rendered, err := c.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}

// step shows tool activity in verbose mode.
func (c *console) step(e *agent.StepEvent) {
	if !c.verbose {
		return
	}
	switch e.Type {
	case agent.EventToolCall:
		c.muted(fmt.Sprintf("  → %s(%s)", e.ToolName, e.ToolInput))
	case agent.EventToolResult:
		if !e.Success {
			c.muted(fmt.Sprintf("  ✗ %s: %s", e.ToolName, e.Output))
		}
	}
}

// confirm asks a yes/no question on in. It shares the reader with the REPL so
// buffered input is not lost.
func (c *console) confirm(in *bufio.Reader) bookmarks.Confirm {
	return func(question string) bool {
		fmt.Fprint(c.out, c.promptStyle.Render(question+" (y/N): "))
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
