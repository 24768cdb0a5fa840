// Package llm provides the reasoning-engine providers used by Zira.
// Supports Google Gemini (genai SDK), OpenAI-compatible endpoints and Ollama.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	MaxErrorBodySize = 1 * 1024 * 1024
)

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Provider defines the interface for reasoning-engine providers.
type Provider interface {
	// Submit sends the conversation and tool catalog and returns the engine's
	// assistant message, which carries either text or tool calls.
	Submit(ctx context.Context, req *Request) (*Message, error)

	// Name returns the provider identifier.
	Name() string

	// Available returns true if the provider is configured.
	Available() bool
}

// Request is one reasoning-engine submission.
type Request struct {
	// SystemPrompt carries the persona and planning instructions.
	SystemPrompt string

	// Messages is the session history in order.
	Messages []Message

	// Tools is the catalog the engine may request.
	Tools []ToolSpec
}

// ProviderConfig contains configuration for a provider.
type ProviderConfig struct {
	// Name identifies the provider (gemini, openai, ollama).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the model to use.
	Model string

	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "gemini":
		return &ProviderConfig{
			Name:        "gemini",
			Model:       "gemini-2.5-flash",
			MaxTokens:   800,
			Temperature: 0.5,
			TopP:        0.8,
			TopK:        40,
			Timeout:     60 * time.Second,
		}
	case "openai":
		return &ProviderConfig{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   800,
			Temperature: 0.5,
			TopP:        0.8,
			Timeout:     60 * time.Second,
		}
	case "ollama":
		return &ProviderConfig{
			Name:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3.1:8b",
			MaxTokens:   800,
			Temperature: 0.5,
			TopP:        0.8,
			TopK:        40,
			Timeout:     2 * time.Minute,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			MaxTokens:   800,
			Temperature: 0.5,
			Timeout:     60 * time.Second,
		}
	}
}

// NewProvider builds the named provider from cfg.
func NewProvider(ctx context.Context, name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (DRY helper for HTTP-based providers)
// ═══════════════════════════════════════════════════════════════════════════════

// baseProvider provides common functionality for HTTP-based providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	cfg = withDefaults(cfg, providerName)
	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func withDefaults(cfg *ProviderConfig, providerName string) *ProviderConfig {
	defaults := DefaultConfig(providerName)
	if cfg == nil {
		return defaults
	}

	merged := *cfg
	if merged.Endpoint == "" {
		merged.Endpoint = defaults.Endpoint
	}
	if merged.Model == "" {
		merged.Model = defaults.Model
	}
	if merged.MaxTokens == 0 {
		merged.MaxTokens = defaults.MaxTokens
	}
	if merged.Timeout == 0 {
		merged.Timeout = defaults.Timeout
	}
	merged.Name = providerName
	return &merged
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}

// statusError converts a non-200 response into an error, classifying 429 as a
// rate limit.
func statusError(provider string, resp *http.Response) error {
	body, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}
	return fmt.Errorf("%s error (status %d): %s", provider, resp.StatusCode, string(body))
}
