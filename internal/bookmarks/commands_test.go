package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openRecorder struct {
	opened []string
	err    error
}

func (o *openRecorder) open(_ context.Context, path string) error {
	o.opened = append(o.opened, path)
	return o.err
}

func newTestCommands(t *testing.T, opts ...Option) (*Commands, *Storage) {
	t.Helper()
	s := newTestStorage(t)
	return NewCommands(s, "Zira", opts...), s
}

func TestCommands_Add(t *testing.T) {
	dir := t.TempDir()
	c, s := newTestCommands(t)

	out := c.Add([]string{"<proj>", "<" + dir + ">"})
	assert.Equal(t, fmt.Sprintf("Bookmark 'proj' added for path: %s", dir), out)

	out = c.Add([]string{"proj", dir})
	assert.Equal(t, "Bookmark 'proj' already exists. To overwrite, remove it first or choose a new alias.", out)

	stored, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"proj": dir}, stored)
}

func TestCommands_AddValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing path", []string{"only"}, "Usage: zira bookmark add <alias> <path>"},
		{"empty alias", []string{"<>", "/tmp"}, "Bookmark alias cannot be empty."},
		{"bad alias", []string{"my alias!", "/tmp"}, "Invalid alias. Use only letters, numbers, hyphens, or underscores."},
		{"empty path", []string{"ok", "<>"}, "Bookmark path cannot be empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCommands(t)
			assert.Equal(t, tt.want, c.Add(tt.args))
		})
	}
}

func TestCommands_AddExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZIRA_BOOKMARK_TEST_DIR", dir)
	c, s := newTestCommands(t)

	out := c.Add([]string{"env", "$ZIRA_BOOKMARK_TEST_DIR/missing", "file"})
	want := filepath.Join(dir, "missing file")
	assert.Equal(t,
		fmt.Sprintf("Warning: Path '%s' does not currently exist.\nBookmark 'env' added for path: %s", want, want),
		out)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	c.Add([]string{"home", "~/somewhere"})

	stored, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "somewhere"), stored["home"])
}

func TestCommands_List(t *testing.T) {
	c, s := newTestCommands(t)
	assert.Equal(t, "You haven't saved any bookmarks yet.", c.List())

	require.NoError(t, s.Save(map[string]string{"zeta": "/z", "alpha": "/a"}))
	assert.Equal(t, "── Saved Bookmarks ──\nalpha: /a\nzeta: /z", c.List())
}

func TestCommands_Jump(t *testing.T) {
	dir := t.TempDir()
	rec := &openRecorder{}
	c, s := newTestCommands(t, WithOpener(rec.open))
	require.NoError(t, s.Save(map[string]string{
		"projects": dir,
		"gone":     filepath.Join(dir, "does-not-exist"),
	}))

	assert.Equal(t, "Opening bookmark 'projects'.", c.Jump(context.Background(), []string{"projects"}))
	assert.Equal(t, []string{dir}, rec.opened)

	out := c.Jump(context.Background(), []string{"gone"})
	assert.Equal(t, fmt.Sprintf("Error: Path '%s' does not exist.", filepath.Join(dir, "does-not-exist")), out)

	out = c.Jump(context.Background(), []string{"prj"})
	assert.Equal(t, "Bookmark 'prj' not found. Did you mean: projects?", out)

	out = c.Jump(context.Background(), []string{"xyz"})
	assert.Equal(t, "Bookmark 'xyz' not found.", out)

	assert.Equal(t, "Usage: zira bookmark jump <alias>", c.Jump(context.Background(), nil))
	assert.Len(t, rec.opened, 1)
}

func TestCommands_JumpOpenerFailure(t *testing.T) {
	dir := t.TempDir()
	rec := &openRecorder{err: errors.New("no display")}
	c, s := newTestCommands(t, WithOpener(rec.open))
	require.NoError(t, s.Save(map[string]string{"d": dir}))

	assert.Equal(t, "Could not open path: no display", c.Jump(context.Background(), []string{"d"}))

	noOpener, s2 := newTestCommands(t)
	require.NoError(t, s2.Save(map[string]string{"d": dir}))
	assert.Contains(t, noOpener.Jump(context.Background(), []string{"d"}), "no handler found")
}

func TestCommands_Remove(t *testing.T) {
	c, s := newTestCommands(t)
	require.NoError(t, s.Save(map[string]string{"a": "/a", "b": "/b"}))

	assert.Equal(t, "Bookmark 'a' for path '/a' has been removed.", c.Remove([]string{"a"}))
	assert.Equal(t, "Bookmark 'a' not found. Nothing to remove.", c.Remove([]string{"a"}))
	assert.Equal(t, "Usage: zira bookmark remove <alias>", c.Remove(nil))

	stored, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "/b"}, stored)
}

func TestCommands_Clear(t *testing.T) {
	many := map[string]string{"a": "/a", "b": "/b", "c": "/c", "d": "/d"}

	tests := []struct {
		name      string
		stored    map[string]string
		args      []string
		confirm   Confirm
		want      string
		remaining int
	}{
		{
			name:   "nothing to clear",
			stored: map[string]string{},
			want:   "There are no bookmarks to clear.",
		},
		{
			name:      "few bookmarks clear without asking",
			stored:    map[string]string{"a": "/a", "b": "/b"},
			want:      "All bookmarks have been cleared.",
			remaining: 0,
		},
		{
			name:      "many bookmarks without confirm are kept",
			stored:    many,
			want:      "Clear operation cancelled.",
			remaining: 4,
		},
		{
			name:      "many bookmarks declined",
			stored:    many,
			confirm:   func(string) bool { return false },
			want:      "Clear operation cancelled.",
			remaining: 4,
		},
		{
			name:   "many bookmarks confirmed",
			stored: many,
			confirm: func(prompt string) bool {
				return strings.Contains(prompt, "more than 3 bookmarks")
			},
			want:      "All bookmarks have been cleared.",
			remaining: 0,
		},
		{
			name:      "single alias delegates to remove",
			stored:    many,
			args:      []string{"<c>"},
			want:      "Bookmark 'c' for path '/c' has been removed.",
			remaining: 3,
		},
		{
			name:      "invalid alias",
			stored:    many,
			args:      []string{"bad", "alias"},
			want:      "Invalid alias format. Please provide a valid bookmark alias to clear.",
			remaining: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.confirm != nil {
				opts = append(opts, WithConfirm(tt.confirm))
			}
			c, s := newTestCommands(t, opts...)
			require.NoError(t, s.Save(tt.stored))

			assert.Equal(t, tt.want, c.Clear(tt.args))

			stored, err := s.Load()
			require.NoError(t, err)
			assert.Len(t, stored, tt.remaining)
		})
	}
}

func TestCommands_Run(t *testing.T) {
	c, _ := newTestCommands(t)

	out, ok := c.Run(context.Background(), "list", nil)
	assert.True(t, ok)
	assert.Equal(t, "You haven't saved any bookmarks yet.", out)

	_, ok = c.Run(context.Background(), "rename", nil)
	assert.False(t, ok)

	assert.Equal(t, "Usage: zira bookmark <add|list|jump|remove|clear> ...", c.Usage())
}

func TestSuggest(t *testing.T) {
	aliases := []string{"Downloads", "documents", "music"}

	assert.Equal(t, []string{"documents"}, Suggest("docs", aliases, 3))
	assert.Equal(t, []string{"Downloads"}, Suggest("DOWN", aliases, 3))
	assert.Empty(t, Suggest("zzz", aliases, 3))
	assert.Empty(t, Suggest("", aliases, 3))
}
