// Package router handles the deterministic commands Zira understands without
// consulting the reasoning engine: voice toggles, help, system verbs and the
// bookmark family.
package router

import (
	"context"
	"errors"
	"sync"
)

// Intent names the command a routed input was recognised as.
type Intent string

const (
	IntentNone        Intent = ""
	IntentVoiceOn     Intent = "voice_on"
	IntentVoiceOff    Intent = "voice_off"
	IntentHelp        Intent = "help"
	IntentOpenWebsite Intent = "open_website"
	IntentOpenApp     Intent = "open_application"
	IntentCloseApp    Intent = "close_application"
	IntentWeather     Intent = "get_weather"
	IntentSearch      Intent = "web_search"
	IntentBookmark    Intent = "bookmark"
)

// String returns the string representation of an Intent.
func (i Intent) String() string {
	if i == IntentNone {
		return "none"
	}
	return string(i)
}

// ErrUnknownSubCommand marks a bookmark sub-command nothing matched.
var ErrUnknownSubCommand = errors.New("unknown bookmark sub-command")

// Result is the outcome of routing one input.
type Result struct {
	// Handled is false when the input should go to the planner.
	Handled bool `json:"handled"`

	// Text is the reply shown to the user.
	Text string `json:"text,omitempty"`

	// Intent is the recognised command.
	Intent Intent `json:"intent,omitempty"`

	// Err carries a classified failure, e.g. ErrUnknownSubCommand. The reply
	// in Text is still meant for the user.
	Err error `json:"-"`
}

// Unhandled is returned for inputs the router does not own.
var Unhandled = Result{}

// Handled builds a terminal result.
func Handled(intent Intent, text string) Result {
	return Result{Handled: true, Intent: intent, Text: text}
}

// ModeState holds interaction mode flags shared between the router and the
// REPL. The zero value has voice mode off.
type ModeState struct {
	mu    sync.RWMutex
	voice bool
}

// VoiceEnabled reports whether voice mode is on.
func (m *ModeState) VoiceEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voice
}

// SetVoice switches voice mode and reports whether the value changed.
func (m *ModeState) SetVoice(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voice == on {
		return false
	}
	m.voice = on
	return true
}

// ToolInvoker runs a named tool. *tools.Registry satisfies it.
type ToolInvoker interface {
	Invoke(ctx context.Context, name, arg string) (string, error)
}

// BookmarkRunner executes a resolved bookmark sub-command.
// *bookmarks.Commands satisfies it.
type BookmarkRunner interface {
	Run(ctx context.Context, sub string, args []string) (string, bool)
}

// RouterStats tracks routing statistics.
type RouterStats struct {
	TotalRequests      int64            `json:"total_requests"`
	Hits               int64            `json:"hits"`
	Misses             int64            `json:"misses"`
	IntentDistribution map[Intent]int64 `json:"intent_distribution"`
}

// HitRatio returns the share of inputs handled by the router, in percent.
func (s *RouterStats) HitRatio() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests) * 100
}
