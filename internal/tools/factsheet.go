package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"

	"github.com/normanking/zira/internal/logging"
)

// NoFactsMessage is returned when nothing in the fact sheet matches.
const NoFactsMessage = "No relevant information found in the fact sheet."

// FactSheet answers questions from a local text file. The file is split into
// overlapping chunks and ranked by term overlap with the query.
type FactSheet struct {
	path    string
	size    int
	overlap int
	topK    int

	mu     sync.RWMutex
	chunks []string
	terms  []map[string]int

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
}

// FactSheetOption configures FactSheet.
type FactSheetOption func(*FactSheet)

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) FactSheetOption {
	return func(f *FactSheet) {
		if size > 0 && overlap >= 0 && overlap < size {
			f.size, f.overlap = size, overlap
		}
	}
}

// WithTopK sets how many chunks a query returns.
func WithTopK(k int) FactSheetOption {
	return func(f *FactSheet) {
		if k > 0 {
			f.topK = k
		}
	}
}

// NewFactSheet loads path. A missing file yields an empty fact sheet.
func NewFactSheet(path string, opts ...FactSheetOption) (*FactSheet, error) {
	f := &FactSheet{
		path:    path,
		size:    500,
		overlap: 100,
		topK:    5,
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FactSheet) Name() string { return "local_factsheet" }

func (f *FactSheet) Description() string {
	return "Answer detailed questions from the local fact sheet."
}

// Invoke returns the best matching passages separated by "---".
func (f *FactSheet) Invoke(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	passages := f.Retrieve(query)
	if len(passages) == 0 {
		return NoFactsMessage, nil
	}
	return strings.Join(passages, "\n---\n"), nil
}

// Reload re-reads and re-chunks the file.
func (f *FactSheet) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Global().WithComponent("FactSheet").Warn("fact sheet %s not found, starting empty", f.path)
			data = nil
		} else {
			return fmt.Errorf("read fact sheet: %w", err)
		}
	}

	chunks := SplitChunks(string(data), f.size, f.overlap)
	terms := make([]map[string]int, len(chunks))
	for i, c := range chunks {
		terms[i] = termCounts(c)
	}

	f.mu.Lock()
	f.chunks = chunks
	f.terms = terms
	f.mu.Unlock()

	logging.Global().WithComponent("FactSheet").Debug("loaded %d chunks from %s", len(chunks), f.path)
	return nil
}

// Chunks returns the number of indexed chunks.
func (f *FactSheet) Chunks() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chunks)
}

// Retrieve returns up to topK chunks that share at least one term with query,
// best first. Ties keep document order.
func (f *FactSheet) Retrieve(query string) []string {
	queryTerms := termCounts(query)
	if len(queryTerms) == 0 {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	type scored struct {
		index int
		score int
	}
	var hits []scored
	for i, counts := range f.terms {
		score := 0
		for term := range queryTerms {
			score += counts[term]
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > f.topK {
		hits = hits[:f.topK]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = f.chunks[h.index]
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// FILE WATCHING
// ═══════════════════════════════════════════════════════════════════════════════

// Watch reloads the fact sheet whenever the file changes until Close.
func (f *FactSheet) Watch() error {
	if f.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	f.watcher = watcher
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.watch()
	return nil
}

func (f *FactSheet) watch() {
	log := logging.Global().WithComponent("FactSheet")
	defer close(f.done)

	target := filepath.Clean(f.path)
	for {
		select {
		case <-f.stop:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.Reload(); err != nil {
				log.Warn("reload failed: %v", err)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Error("watcher error: %v", err)
		}
	}
}

// Close stops watching.
func (f *FactSheet) Close() error {
	if f.watcher == nil {
		return nil
	}
	close(f.stop)
	err := f.watcher.Close()
	<-f.done
	f.watcher = nil
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHUNKING
// ═══════════════════════════════════════════════════════════════════════════════

// SplitChunks cuts text into windows of at most size runes that overlap by
// overlap runes. A window prefers to end at a paragraph break, then a line
// break, then a space, as long as that keeps it at least half full.
func SplitChunks(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	window := string(runes[floor:end])
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + len([]rune(window[:i])) + len([]rune(sep))
		}
	}
	return end
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "what": true,
	"who": true, "how": true, "is": true, "of": true, "to": true, "in": true,
	"a": true, "an": true, "on": true, "at": true, "it": true, "my": true,
	"me": true, "do": true, "does": true, "with": true, "about": true, "tell": true,
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		counts[w]++
	}
	return counts
}
