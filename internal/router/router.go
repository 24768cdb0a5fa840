package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/normanking/zira/internal/logging"
	"github.com/normanking/zira/internal/tools"
)

// MaxURLLength is the longest URL open website accepts.
const MaxURLLength = 2083

const forbiddenChars = ";&|$`<>"

var (
	enableVoiceRe  = regexp.MustCompile(`(?i)^(?:enable|activate)\s+voice\s+mode$`)
	disableVoiceRe = regexp.MustCompile(`(?i)^(?:disable|deactivate|exit)\s+voice\s+mode$`)
	websiteRe      = regexp.MustCompile(`(?i)^open\s+website\s+(https?://\S+)$`)
	appRe          = regexp.MustCompile(`(?i)^open\s+(.+)$`)
	closeRe        = regexp.MustCompile(`(?i)^close\s+(.+)$`)
	weatherRe      = regexp.MustCompile(`(?i)^weather(?:\s+in)?\s+(.+)$`)
	searchRe       = regexp.MustCompile(`(?i)^search\s+(.+)$`)
)

// bookmarkSubCommands mirrors the sub-commands bookmarks.Commands.Run accepts.
var bookmarkSubCommands = []string{"add", "list", "jump", "remove", "clear"}

// Router recognises deterministic commands. Every hit is terminal; a miss
// returns Unhandled and the caller falls through to the planner.
type Router struct {
	name      string
	mode      *ModeState
	tools     ToolInvoker
	bookmarks BookmarkRunner
	log       *logging.Logger

	stats RouterStats
	mu    sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithBookmarks enables the "<name> bookmark ..." family.
func WithBookmarks(b BookmarkRunner) RouterOption {
	return func(r *Router) {
		r.bookmarks = b
	}
}

// New creates a router for the assistant called name. mode is owned by the
// caller and may be nil, in which case the router keeps its own.
func New(name string, mode *ModeState, invoker ToolInvoker, opts ...RouterOption) *Router {
	if mode == nil {
		mode = &ModeState{}
	}
	r := &Router{
		name:  strings.ToLower(strings.TrimSpace(name)),
		mode:  mode,
		tools: invoker,
		log:   logging.Global().WithComponent("Router"),
		stats: RouterStats{
			IntentDistribution: make(map[Intent]int64),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode returns the mode flags the router toggles.
func (r *Router) Mode() *ModeState {
	return r.mode
}

// Normalize trims raw and collapses inner whitespace runs to one space.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Route handles raw when it is a known command.
func (r *Router) Route(ctx context.Context, raw string) Result {
	input := Normalize(raw)
	res := r.route(ctx, input)
	r.record(res)
	if res.Handled {
		r.log.Info("handled %s", res.Intent)
	}
	return res
}

func (r *Router) route(ctx context.Context, input string) Result {
	if input == "" {
		return Unhandled
	}
	lower := strings.ToLower(input)

	// 1. Mode toggles
	if enableVoiceRe.MatchString(input) {
		if !r.mode.SetVoice(true) {
			return Handled(IntentVoiceOn, "Voice mode is already enabled.")
		}
		return Handled(IntentVoiceOn, "Voice mode enabled. Press and hold your push-to-talk key to speak.")
	}
	if disableVoiceRe.MatchString(input) {
		if !r.mode.SetVoice(false) {
			return Handled(IntentVoiceOff, "Voice mode is already disabled.")
		}
		return Handled(IntentVoiceOff, "Voice mode disabled. Returning to text input.")
	}

	// 2. Help
	if lower == "help" || lower == r.name+" help" || lower == "help "+r.name {
		return Handled(IntentHelp, r.Help())
	}

	// 3. Verbs
	if m := websiteRe.FindStringSubmatch(input); m != nil {
		url := m[1]
		if len(url) > MaxURLLength {
			r.log.Warn("URL too long (%d chars)", len(url))
			return Handled(IntentOpenWebsite, "That URL is too long to open safely.")
		}
		return r.invoke(ctx, IntentOpenWebsite, url, "Sorry, I couldn't open the website "+url+".")
	}
	if m := appRe.FindStringSubmatch(input); m != nil {
		app := strings.TrimSpace(m[1])
		if !strings.HasPrefix(app, "http://") && !strings.HasPrefix(app, "https://") {
			if strings.ContainsAny(app, forbiddenChars) {
				r.log.Warn("invalid characters in app name: %s", app)
				return Handled(IntentOpenApp, "Invalid application name. Please avoid special characters.")
			}
			return r.invoke(ctx, IntentOpenApp, app, "Sorry, I couldn't open the application "+app+".")
		}
	}
	if m := closeRe.FindStringSubmatch(input); m != nil {
		app := strings.TrimSpace(m[1])
		if strings.ContainsAny(app, forbiddenChars) {
			r.log.Warn("invalid characters in close target: %s", app)
			return Handled(IntentCloseApp, "Invalid application name. Please avoid special characters.")
		}
		return r.invoke(ctx, IntentCloseApp, app, "Sorry, I couldn't close the application "+app+".")
	}
	if m := weatherRe.FindStringSubmatch(input); m != nil {
		location := strings.TrimSpace(m[1])
		if strings.ContainsAny(location, forbiddenChars) {
			r.log.Warn("invalid characters in location: %s", location)
			return Handled(IntentWeather, "Invalid location. Please avoid special characters.")
		}
		return r.invoke(ctx, IntentWeather, location, "Sorry, I couldn't retrieve weather for "+location+".")
	}
	if m := searchRe.FindStringSubmatch(input); m != nil {
		query := strings.TrimSpace(m[1])
		return r.invoke(ctx, IntentSearch, query, "Sorry, I couldn't perform the search.")
	}

	// 4. Bookmarks
	parts := strings.Fields(input)
	if r.bookmarks != nil && len(parts) >= 2 &&
		strings.ToLower(parts[0]) == r.name && strings.ToLower(parts[1]) == "bookmark" {
		return r.bookmark(ctx, parts)
	}

	return Unhandled
}

// invoke runs the tool named after intent. Failures become the fixed apology.
func (r *Router) invoke(ctx context.Context, intent Intent, arg, apology string) Result {
	if r.tools == nil {
		return Handled(intent, unavailable(intent))
	}

	out, err := r.tools.Invoke(ctx, string(intent), arg)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			r.log.Warn("tool %s is not registered", intent)
			return Handled(intent, unavailable(intent))
		}
		r.log.Error("%s(%q) failed: %v", intent, arg, err)
		return Result{Handled: true, Intent: intent, Text: apology, Err: err}
	}
	return Handled(intent, out)
}

func unavailable(intent Intent) string {
	if intent == IntentSearch {
		return "Search functionality is not available."
	}
	return "Sorry, I cannot perform that action."
}

func (r *Router) bookmark(ctx context.Context, parts []string) Result {
	if len(parts) < 3 {
		return Handled(IntentBookmark, r.bookmarkUsage())
	}

	raw := strings.ToLower(parts[2])
	sub, ok := ClosestMatch(raw, bookmarkSubCommands, SimilarityCutoff)
	if !ok {
		r.log.Warn("unknown bookmark sub-command: %s", raw)
		return Result{
			Handled: true,
			Intent:  IntentBookmark,
			Text:    fmt.Sprintf("Unknown bookmark command: '%s'", raw),
			Err:     fmt.Errorf("%w: %s", ErrUnknownSubCommand, raw),
		}
	}

	var notice string
	if sub != raw {
		notice = fmt.Sprintf("Interpreting '%s' as '%s'.\n", raw, sub)
	}

	reply, ok := r.bookmarks.Run(ctx, sub, parts[3:])
	if !ok {
		return Result{
			Handled: true,
			Intent:  IntentBookmark,
			Text:    fmt.Sprintf("Unknown bookmark command: '%s'", sub),
			Err:     fmt.Errorf("%w: %s", ErrUnknownSubCommand, sub),
		}
	}
	return Handled(IntentBookmark, notice+reply)
}

func (r *Router) bookmarkUsage() string {
	n := r.name
	return "Usage:\n" +
		"  " + n + " bookmark add <alias> <path>\n" +
		"  " + n + " bookmark list\n" +
		"  " + n + " bookmark jump <alias>\n" +
		"  " + n + " bookmark remove <alias>\n" +
		"  " + n + " bookmark clear [<alias>]"
}

// Help lists the commands the router understands.
func (r *Router) Help() string {
	n := r.name
	return "You can say:\n" +
		"  • " + n + " bookmark add <alias> <path>\n" +
		"  • " + n + " bookmark list\n" +
		"  • " + n + " bookmark jump <alias>\n" +
		"  • " + n + " bookmark remove <alias>\n" +
		"  • " + n + " bookmark clear [<alias>]\n" +
		"  • open <application> / open website <url>\n" +
		"  • close <application>\n" +
		"  • weather in <city>\n" +
		"  • search <query>\n" +
		"  • enable voice mode / disable voice mode\n" +
		"Type any other question and I'll try to help."
}

func (r *Router) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalRequests++
	if res.Handled {
		r.stats.Hits++
		r.stats.IntentDistribution[res.Intent]++
	} else {
		r.stats.Misses++
	}
}

// GetStats returns a copy of the routing statistics.
func (r *Router) GetStats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	dist := make(map[Intent]int64, len(r.stats.IntentDistribution))
	for k, v := range r.stats.IntentDistribution {
		dist[k] = v
	}
	return RouterStats{
		TotalRequests:      r.stats.TotalRequests,
		Hits:               r.stats.Hits,
		Misses:             r.stats.Misses,
		IntentDistribution: dist,
	}
}
