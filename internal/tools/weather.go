package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultWeatherEndpoint = "https://wttr.in"

// Weather reports current conditions from a wttr.in compatible service.
type Weather struct {
	endpoint   string
	httpClient *http.Client
}

// WeatherOption configures Weather.
type WeatherOption func(*Weather)

// WithWeatherEndpoint points the tool at another wttr.in instance.
func WithWeatherEndpoint(endpoint string) WeatherOption {
	return func(w *Weather) {
		if endpoint != "" {
			w.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithWeatherHTTPClient sets a custom HTTP client.
func WithWeatherHTTPClient(client *http.Client) WeatherOption {
	return func(w *Weather) {
		w.httpClient = client
	}
}

// NewWeather creates the get_weather tool.
func NewWeather(opts ...WeatherOption) *Weather {
	w := &Weather{
		endpoint:   defaultWeatherEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Weather) Name() string { return "get_weather" }

func (w *Weather) Description() string {
	return "Gets the current weather for the specified location."
}

// Invoke fetches the one-line report (format=3), e.g. "Paris: ☀️ +21°C".
func (w *Weather) Invoke(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("location is required")
	}

	endpoint := fmt.Sprintf("%s/%s?format=3", w.endpoint, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/8.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather service returned status %d", resp.StatusCode)
	}

	report := strings.TrimSpace(string(body))
	if report == "" {
		return "", fmt.Errorf("empty weather report for %s", location)
	}
	return report, nil
}
