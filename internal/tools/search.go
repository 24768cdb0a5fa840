package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/normanking/zira/internal/logging"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	maxSearchResults      = 5
	maxQueryLength        = 500
)

// SearchResult is one organic hit from the results page.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearch queries DuckDuckGo's HTML endpoint and scrapes the top results.
type WebSearch struct {
	endpoint   string
	httpClient *http.Client
	cache      *searchCache

	dangerousPatterns []*regexp.Regexp
}

type searchCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

type cacheEntry struct {
	results   []SearchResult
	expiresAt time.Time
}

// SearchOption configures WebSearch.
type SearchOption func(*WebSearch)

// WithSearchEndpoint overrides the results page URL.
func WithSearchEndpoint(endpoint string) SearchOption {
	return func(w *WebSearch) {
		if endpoint != "" {
			w.endpoint = endpoint
		}
	}
}

// WithSearchHTTPClient sets a custom HTTP client.
func WithSearchHTTPClient(client *http.Client) SearchOption {
	return func(w *WebSearch) {
		w.httpClient = client
	}
}

// WithCacheTTL sets how long results are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) SearchOption {
	return func(w *WebSearch) {
		w.cache.ttl = ttl
	}
}

// NewWebSearch creates the web_search tool.
func NewWebSearch(opts ...SearchOption) *WebSearch {
	w := &WebSearch{
		endpoint:   defaultSearchEndpoint,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		cache: &searchCache{
			entries: make(map[string]*cacheEntry),
			ttl:     15 * time.Minute,
			maxSize: 100,
		},
	}
	w.compileDangerousPatterns()

	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSearch) compileDangerousPatterns() {
	patterns := []string{
		`<script[^>]*>.*?</script>`,
		`javascript:`,
		`on\w+\s*=`,
		`data:\s*text/html`,
		`\x00`,
		`<iframe[^>]*>`,
	}
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			w.dangerousPatterns = append(w.dangerousPatterns, re)
		}
	}
}

func (w *WebSearch) Name() string { return "web_search" }

func (w *WebSearch) Description() string {
	return "Use this to look up live information on the web."
}

// Invoke searches for query and renders the top results as numbered text.
func (w *WebSearch) Invoke(ctx context.Context, query string) (string, error) {
	results, err := w.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", strings.TrimSpace(query)), nil
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, " - %s", r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, " (%s)", r.URL)
		}
	}
	return sb.String(), nil
}

// Search returns up to five sanitized results for query.
func (w *WebSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	log := logging.Global().WithComponent("WebSearch")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("search query too long (max %d characters)", maxQueryLength)
	}

	key := cacheKey(query)
	if cached := w.cache.get(key); cached != nil {
		log.Debug("cache hit for query: %s", query)
		return cached, nil
	}

	start := time.Now()
	results, err := w.fetch(ctx, query)
	if err != nil {
		log.Error("search failed: %v", err)
		return nil, err
	}

	w.cache.set(key, results)
	log.Info("found %d results for %q in %v", len(results), query, time.Since(start))
	return results, nil
}

func (w *WebSearch) fetch(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint, err := url.Parse(w.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Zira/1.0)")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := w.sanitizeText(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, SearchResult{
			Title:   title,
			URL:     resolveResultURL(href),
			Snippet: w.sanitizeText(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < maxSearchResults
	})
	return results, nil
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func (w *WebSearch) sanitizeText(text string) string {
	for _, pattern := range w.dangerousPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// ═══════════════════════════════════════════════════════════════════════════════
// CACHE
// ═══════════════════════════════════════════════════════════════════════════════

func cacheKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

func (c *searchCache) get(key string) []SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.results
}

func (c *searchCache) set(key string, results []SearchResult) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{
		results:   results,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *searchCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
