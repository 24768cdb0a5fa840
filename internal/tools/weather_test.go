package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeather_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/New York", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("format"))
		fmt.Fprintln(w, "New York: ⛅️  +18°C")
	}))
	defer server.Close()

	w := NewWeather(WithWeatherEndpoint(server.URL+"/"), WithWeatherHTTPClient(server.Client()))
	assert.Equal(t, "get_weather", w.Name())

	out, err := w.Invoke(context.Background(), "  New York ")
	require.NoError(t, err)
	assert.Equal(t, "New York: ⛅️  +18°C", out)
}

func TestWeather_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		location string
		wantErr  string
	}{
		{"empty location", http.StatusOK, "x", " ", "location is required"},
		{"server error", http.StatusInternalServerError, "oops", "Paris", "status 500"},
		{"empty body", http.StatusOK, "  \n", "Paris", "empty weather report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			w := NewWeather(WithWeatherEndpoint(server.URL))
			_, err := w.Invoke(context.Background(), tt.location)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
