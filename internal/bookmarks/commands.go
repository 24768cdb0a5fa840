package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/normanking/zira/internal/logging"
)

// SubCommands lists the bookmark sub-commands in help order.
var SubCommands = []string{"add", "list", "jump", "remove", "clear"}

// ConfirmThreshold is the bookmark count above which clearing all asks first.
const ConfirmThreshold = 3

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Opener hands a filesystem path to the desktop.
type Opener func(ctx context.Context, path string) error

// Confirm asks the user a yes/no question.
type Confirm func(prompt string) bool

// Commands implements add, list, jump, remove and clear.
type Commands struct {
	storage *Storage
	name    string
	open    Opener
	confirm Confirm
	log     *logging.Logger
}

// Option configures Commands.
type Option func(*Commands)

// WithOpener sets how jump opens a bookmarked path.
func WithOpener(fn Opener) Option {
	return func(c *Commands) {
		c.open = fn
	}
}

// WithConfirm sets the prompt used before clearing many bookmarks. Without
// one, clearing more than ConfirmThreshold bookmarks is refused.
func WithConfirm(fn Confirm) Option {
	return func(c *Commands) {
		c.confirm = fn
	}
}

// NewCommands creates the handlers. name is the assistant name shown in usage.
func NewCommands(storage *Storage, name string, opts ...Option) *Commands {
	c := &Commands{
		storage: storage,
		name:    strings.ToLower(name),
		log:     logging.Global().WithComponent("Bookmarks"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Usage returns the one-line usage for the bookmark family.
func (c *Commands) Usage() string {
	return fmt.Sprintf("Usage: %s bookmark <%s> ...", c.name, strings.Join(SubCommands, "|"))
}

// Run executes sub with the words that followed it. ok is false when sub is
// not a bookmark command.
func (c *Commands) Run(ctx context.Context, sub string, args []string) (reply string, ok bool) {
	switch sub {
	case "add":
		return c.Add(args), true
	case "list":
		return c.List(), true
	case "jump":
		return c.Jump(ctx, args), true
	case "remove":
		return c.Remove(args), true
	case "clear":
		return c.Clear(args), true
	default:
		return "", false
	}
}

// Add saves "<alias> <path...>".
func (c *Commands) Add(args []string) string {
	if len(args) < 2 {
		return fmt.Sprintf("Usage: %s bookmark add <alias> <path>", c.name)
	}

	alias := cleanArg(args[0])
	if alias == "" {
		return "Bookmark alias cannot be empty."
	}
	if !aliasPattern.MatchString(alias) {
		c.log.Warn("invalid alias: %q", alias)
		return "Invalid alias. Use only letters, numbers, hyphens, or underscores."
	}

	path := cleanArg(strings.Join(args[1:], " "))
	if path == "" {
		return "Bookmark path cannot be empty."
	}
	path, err := normalizePath(path)
	if err != nil {
		return fmt.Sprintf("Invalid path: %v", err)
	}

	var lines []string
	if _, err := os.Stat(path); err != nil {
		lines = append(lines, fmt.Sprintf("Warning: Path '%s' does not currently exist.", path))
		c.log.Warn("bookmark added with non-existent path: %s", path)
	}

	errExists := errors.New("exists")
	err = c.storage.Update(func(bookmarks map[string]string) error {
		if _, ok := bookmarks[alias]; ok {
			return errExists
		}
		bookmarks[alias] = path
		return nil
	})
	switch {
	case errors.Is(err, errExists):
		lines = append(lines, fmt.Sprintf("Bookmark '%s' already exists. To overwrite, remove it first or choose a new alias.", alias))
	case err != nil:
		c.log.Error("save bookmark %s: %v", alias, err)
		lines = append(lines, "Could not save the bookmark due to a file error. Check disk space or permissions.")
	default:
		c.log.Info("bookmark added: %s -> %s", alias, path)
		lines = append(lines, fmt.Sprintf("Bookmark '%s' added for path: %s", alias, path))
	}
	return strings.Join(lines, "\n")
}

// List renders the bookmarks sorted by alias.
func (c *Commands) List() string {
	bookmarks, err := c.storage.Load()
	if err != nil {
		c.log.Error("load bookmarks: %v", err)
		return "An error occurred while listing bookmarks."
	}
	if len(bookmarks) == 0 {
		return "You haven't saved any bookmarks yet."
	}

	var sb strings.Builder
	sb.WriteString("── Saved Bookmarks ──")
	for _, alias := range sortedAliases(bookmarks) {
		fmt.Fprintf(&sb, "\n%s: %s", alias, bookmarks[alias])
	}
	return sb.String()
}

// Jump opens the path saved under alias.
func (c *Commands) Jump(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return fmt.Sprintf("Usage: %s bookmark jump <alias>", c.name)
	}
	alias := cleanArg(args[0])
	if alias == "" {
		return "Please provide a valid bookmark alias."
	}

	bookmarks, err := c.storage.Load()
	if err != nil {
		c.log.Error("load bookmarks: %v", err)
		return "An error occurred while jumping to the bookmark."
	}

	path, ok := bookmarks[alias]
	if !ok {
		c.log.Warn("jump to unknown bookmark: %s", alias)
		msg := fmt.Sprintf("Bookmark '%s' not found.", alias)
		if near := Suggest(alias, sortedAliases(bookmarks), 3); len(near) > 0 {
			msg += fmt.Sprintf(" Did you mean: %s?", strings.Join(near, ", "))
		}
		return msg
	}

	// Re-expand in case HOME or the environment changed since it was saved.
	path, err = normalizePath(path)
	if err != nil {
		return fmt.Sprintf("Could not open path: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		c.log.Error("bookmark %s points at missing path %s", alias, path)
		return fmt.Sprintf("Error: Path '%s' does not exist.", path)
	}
	if c.open == nil {
		return "Error: Cannot open the file or folder on your system (no handler found)."
	}
	if err := c.open(ctx, path); err != nil {
		c.log.Error("open %s: %v", path, err)
		return fmt.Sprintf("Could not open path: %v", err)
	}

	c.log.Info("opened bookmark %s: %s", alias, path)
	return fmt.Sprintf("Opening bookmark '%s'.", alias)
}

// Remove deletes alias.
func (c *Commands) Remove(args []string) string {
	if len(args) < 1 {
		return fmt.Sprintf("Usage: %s bookmark remove <alias>", c.name)
	}
	alias := cleanArg(args[0])
	if alias == "" {
		return "Please provide a valid bookmark alias to remove."
	}

	var removed string
	errMissing := errors.New("missing")
	err := c.storage.Update(func(bookmarks map[string]string) error {
		path, ok := bookmarks[alias]
		if !ok {
			return errMissing
		}
		removed = path
		delete(bookmarks, alias)
		return nil
	})
	switch {
	case errors.Is(err, errMissing):
		return fmt.Sprintf("Bookmark '%s' not found. Nothing to remove.", alias)
	case err != nil:
		c.log.Error("remove bookmark %s: %v", alias, err)
		return "Could not update bookmarks due to a file error. Check disk space or permissions."
	}

	c.log.Info("bookmark removed: %s -> %s", alias, removed)
	return fmt.Sprintf("Bookmark '%s' for path '%s' has been removed.", alias, removed)
}

// Clear removes one alias when given, otherwise every bookmark.
func (c *Commands) Clear(args []string) string {
	alias := cleanArg(strings.Join(args, " "))
	if alias != "" {
		if !aliasPattern.MatchString(alias) {
			return "Invalid alias format. Please provide a valid bookmark alias to clear."
		}
		return c.Remove([]string{alias})
	}

	bookmarks, err := c.storage.Load()
	if err != nil {
		c.log.Error("load bookmarks: %v", err)
		return "An error occurred while clearing bookmarks."
	}
	if len(bookmarks) == 0 {
		return "There are no bookmarks to clear."
	}
	if len(bookmarks) > ConfirmThreshold {
		prompt := fmt.Sprintf("You have more than %d bookmarks. Are you sure you want to clear all? (yes/no)", ConfirmThreshold)
		if c.confirm == nil || !c.confirm(prompt) {
			c.log.Info("clear all cancelled")
			return "Clear operation cancelled."
		}
	}

	if err := c.storage.Save(map[string]string{}); err != nil {
		c.log.Error("clear bookmarks: %v", err)
		return "Could not clear bookmarks due to a file error. Check disk space or permissions."
	}
	c.log.Info("all bookmarks cleared")
	return "All bookmarks have been cleared."
}

// Suggest returns up to limit aliases that fuzzy-match query, best first.
func Suggest(query string, aliases []string, limit int) []string {
	if query == "" || len(aliases) == 0 {
		return nil
	}
	lowered := make([]string, len(aliases))
	for i, a := range aliases {
		lowered[i] = strings.ToLower(a)
	}

	matches := fuzzy.Find(strings.ToLower(query), lowered)
	var out []string
	for _, m := range matches {
		out = append(out, aliases[m.Index])
		if len(out) == limit {
			break
		}
	}
	return out
}

func cleanArg(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "<>"))
}

func sortedAliases(bookmarks map[string]string) []string {
	aliases := make([]string, 0, len(bookmarks))
	for a := range bookmarks {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// normalizePath expands "~" and environment variables and makes path absolute.
func normalizePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	path = os.ExpandEnv(path)
	return filepath.Abs(path)
}
