package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Dashboard formats collector stats for the REPL.
type Dashboard struct {
	collector *Collector
	styles    DashboardStyles
	width     int
	now       func() time.Time
}

// DashboardStyles defines the styling for the dashboard.
type DashboardStyles struct {
	Border    lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}

// NewDashboard creates a dashboard renderer.
func NewDashboard(collector *Collector) *Dashboard {
	return &Dashboard{
		collector: collector,
		width:     80,
		styles:    defaultDashboardStyles(),
		now:       time.Now,
	}
}

func defaultDashboardStyles() DashboardStyles {
	return DashboardStyles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Value: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// SetWidth sets the dashboard width.
func (d *Dashboard) SetWidth(w int) {
	d.width = w
}

// Render returns the bordered multi-line view.
func (d *Dashboard) Render() string {
	stats := d.collector.GetSessionStats()

	var content strings.Builder
	content.WriteString(d.styles.Header.Render("METRICS"))
	content.WriteString("\n")

	// Row 1: requests, split, success rate
	row1 := fmt.Sprintf("%s %s │ %s %s / %s │ %s %s",
		d.styles.Label.Render("Requests:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.RequestCount)),
		d.styles.Label.Render("Router/Planner:"),
		d.styles.Highlight.Render(fmt.Sprintf("%d", stats.RouterHits)),
		d.styles.Highlight.Render(fmt.Sprintf("%d", stats.PlannerRuns)),
		d.styles.Label.Render("Success:"),
		d.formatSuccessRate(successRate(stats)),
	)
	content.WriteString(row1)
	content.WriteString("\n")

	// Row 2: latency, tools, retries
	row2 := fmt.Sprintf("%s %s │ %s %s │ %s %s",
		d.styles.Label.Render("Latency:"),
		d.styles.Value.Render(fmt.Sprintf("%.2fs avg", avgLatency(stats))),
		d.styles.Label.Render("Tools:"),
		d.styles.Value.Render(fmt.Sprintf("%d calls (%d failed)", stats.ToolCalls, stats.ToolFailures)),
		d.styles.Label.Render("Retries:"),
		d.styles.Value.Render(fmt.Sprintf("%d (%d exhausted)", stats.Retries, stats.RateLimited)),
	)
	content.WriteString(row2)
	content.WriteString("\n")

	// Row 3: sessions, last event, activity
	lastEvent := stats.LastEvent
	if lastEvent == "" {
		lastEvent = "none"
	}
	if len(lastEvent) > 24 {
		lastEvent = lastEvent[:21] + "..."
	}

	row3 := fmt.Sprintf("%s %s │ %s %s │ %s",
		d.styles.Label.Render("Sessions:"),
		d.styles.Value.Render(fmt.Sprintf("%d", stats.ActiveSessions)),
		d.styles.Label.Render("Last:"),
		d.styles.Value.Render(fmt.Sprintf("%s (%s)", lastEvent, d.since(stats.LastEventTime))),
		d.renderEventActivity(),
	)
	content.WriteString(row3)

	return d.styles.Border.Width(d.width - 4).Render(content.String())
}

// RenderCompact returns a single-line summary.
func (d *Dashboard) RenderCompact() string {
	stats := d.collector.GetSessionStats()

	return fmt.Sprintf("[Metrics] %d req │ %d routed │ %.2fs avg │ %d tools │ %d retries │ %s",
		stats.RequestCount,
		stats.RouterHits,
		avgLatency(stats),
		stats.ToolCalls,
		stats.Retries,
		d.renderEventActivity(),
	)
}

func (d *Dashboard) since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	elapsed := d.now().Sub(t)
	switch {
	case elapsed < time.Second:
		return "now"
	case elapsed < time.Minute:
		return fmt.Sprintf("%.0fs", elapsed.Seconds())
	default:
		return fmt.Sprintf("%.0fm", elapsed.Minutes())
	}
}

func (d *Dashboard) formatSuccessRate(rate float64) string {
	formatted := fmt.Sprintf("%.0f%%", rate)
	if rate >= 90 {
		return d.styles.Success.Render(formatted)
	} else if rate >= 70 {
		return d.styles.Highlight.Render(formatted)
	}
	return d.styles.Error.Render(formatted)
}

// renderEventActivity shows up to five dots for recent events.
func (d *Dashboard) renderEventActivity() string {
	events := d.collector.GetRecentEvents(5)

	activity := make([]string, 5)
	for i := range activity {
		if i < len(events) {
			activity[i] = "●"
		} else {
			activity[i] = "○"
		}
	}
	return strings.Join(activity, "")
}

func avgLatency(s *SessionStats) float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.RequestCount) / 1000.0
}

func successRate(s *SessionStats) float64 {
	if s.RequestCount == 0 {
		return 100
	}
	return float64(s.SuccessCount) / float64(s.RequestCount) * 100
}
