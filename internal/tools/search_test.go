package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultsPage(n int) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div id="links">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `
<div class="result results_links web-result">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%%3A%%2F%%2Fexample.com%%2F%d&amp;rut=abc">Result   %d</a>
  </h2>
  <a class="result__snippet" href="#">Snippet <b>number</b> %d<script>alert(1)</script></a>
</div>`, i, i, i)
	}
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}

func TestWebSearch_Search(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "golang generics", r.URL.Query().Get("q"))
		fmt.Fprint(w, resultsPage(8))
	}))
	defer server.Close()

	s := NewWebSearch(WithSearchEndpoint(server.URL+"/html/"), WithSearchHTTPClient(server.Client()))

	results, err := s.Search(context.Background(), "golang generics")
	require.NoError(t, err)
	require.Len(t, results, maxSearchResults)

	assert.Equal(t, SearchResult{
		Title:   "Result 1",
		URL:     "https://example.com/1",
		Snippet: "Snippet number 1",
	}, results[0])

	// Second call is served from cache, regardless of case.
	_, err = s.Search(context.Background(), "Golang Generics")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestWebSearch_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage(2))
	}))
	defer server.Close()

	s := NewWebSearch(WithSearchEndpoint(server.URL), WithCacheTTL(0))
	out, err := s.Invoke(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t,
		"1. Result 1 - Snippet number 1 (https://example.com/1)\n"+
			"2. Result 2 - Snippet number 2 (https://example.com/2)", out)
}

func TestWebSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer server.Close()

	s := NewWebSearch(WithSearchEndpoint(server.URL))
	out, err := s.Invoke(context.Background(), "obscure")
	require.NoError(t, err)
	assert.Equal(t, `No results found for "obscure".`, out)
}

func TestWebSearch_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := NewWebSearch(WithSearchEndpoint(server.URL))

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"empty", "   ", "cannot be empty"},
		{"too long", strings.Repeat("q", maxQueryLength+1), "too long"},
		{"http status", "blocked", "status 403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Invoke(context.Background(), tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveResultURL(t *testing.T) {
	assert.Equal(t, "", resolveResultURL(""))
	assert.Equal(t, "https://go.dev/doc", resolveResultURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc"))
	assert.Equal(t, "https://direct.example", resolveResultURL("https://direct.example"))
}
