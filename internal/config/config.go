package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Zira assistant.
// It is loaded from ~/.zira/config.yaml and can be overridden by environment variables.
type Config struct {
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Bookmarks BookmarksConfig `mapstructure:"bookmarks" yaml:"bookmarks"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// AssistantConfig contains the persona and the fixed REPL strings.
type AssistantConfig struct {
	// Name is used in help text, bookmark commands and the prompt prefix
	Name string `mapstructure:"name" yaml:"name"`
	// Greeting is printed when the interactive session starts
	Greeting string `mapstructure:"greeting" yaml:"greeting"`
	// Farewell is printed on exit
	Farewell string `mapstructure:"farewell" yaml:"farewell"`
	// SystemPrompt is the persona text placed ahead of the planning instructions
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
	// RenderMarkdown renders final answers as terminal markdown
	RenderMarkdown bool `mapstructure:"render_markdown" yaml:"render_markdown"`
}

// LLMConfig contains configuration for the reasoning-engine providers.
type LLMConfig struct {
	// DefaultProvider selects the provider ("gemini", "openai", "ollama")
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a specific provider.
type ProviderConfig struct {
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model       string        `mapstructure:"model" yaml:"model,omitempty"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	TopP        float64       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AgentConfig controls the planning loop.
type AgentConfig struct {
	// MaxIterations caps how many times the planner consults the reasoning engine per input
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// MaxParallelTools bounds concurrent tool calls within one planning step
	MaxParallelTools int `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools"`
	// Retry configures rate-limit backoff around reasoning-engine calls
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig configures the rate-limit retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	JitterUnit  time.Duration `mapstructure:"jitter_unit" yaml:"jitter_unit"`
}

// SessionConfig controls conversation memory.
type SessionConfig struct {
	// MaxMessages bounds the history kept per session (0 = unbounded)
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`
	// IdleTTL removes sessions that have not been touched for this long (0 = never)
	IdleTTL time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	// Checkpoint persists sessions across restarts
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// CheckpointConfig configures the SQLite session checkpointer.
type CheckpointConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// BookmarksConfig configures bookmark persistence.
type BookmarksConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	DefaultTimeout  time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	FactSheetPath   string        `mapstructure:"fact_sheet_path" yaml:"fact_sheet_path"`
	RetrieverK      int           `mapstructure:"retriever_k" yaml:"retriever_k"`
	ChunkSize       int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap    int           `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	SearchEndpoint  string        `mapstructure:"search_endpoint" yaml:"search_endpoint"`
	WeatherEndpoint string        `mapstructure:"weather_endpoint" yaml:"weather_endpoint"`
	CasesDBPath     string        `mapstructure:"cases_db_path" yaml:"cases_db_path"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

const defaultPersona = "You are Zira, a highly sophisticated and intelligent AI. You engage " +
	"in conversations naturally, providing thoughtful and intelligent responses. You have a " +
	"subtle wit and avoid robotic language. Strive for eloquence and depth."

// Default returns a Config populated with default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	ziraDir := filepath.Join(homeDir, ".zira")

	return &Config{
		Assistant: AssistantConfig{
			Name:         "Zira",
			Greeting:     "Hello, I am Zira. Type 'help' to see what I can do, or just ask.",
			Farewell:     "Goodbye!",
			SystemPrompt: defaultPersona,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: map[string]ProviderConfig{
				"gemini": {
					Model:       "gemini-2.5-flash",
					Temperature: 0.5,
					MaxTokens:   800,
					TopP:        0.8,
					TopK:        40,
					Timeout:     60 * time.Second,
				},
				"openai": {
					Endpoint:    "https://api.openai.com/v1",
					Model:       "gpt-4o-mini",
					Temperature: 0.5,
					MaxTokens:   800,
					TopP:        0.8,
					Timeout:     60 * time.Second,
				},
				"ollama": {
					Endpoint:    "http://127.0.0.1:11434",
					Model:       "llama3.1:8b",
					Temperature: 0.5,
					MaxTokens:   800,
					TopP:        0.8,
					TopK:        40,
					Timeout:     120 * time.Second,
				},
			},
		},
		Agent: AgentConfig{
			MaxIterations:    8,
			MaxParallelTools: 4,
			Retry: RetryConfig{
				MaxAttempts: 5,
				BaseDelay:   2 * time.Second,
				JitterUnit:  time.Second,
			},
		},
		Session: SessionConfig{
			MaxMessages: 100,
			IdleTTL:     24 * time.Hour,
			Checkpoint: CheckpointConfig{
				Enabled: true,
				DBPath:  filepath.Join(ziraDir, "sessions.db"),
			},
		},
		Bookmarks: BookmarksConfig{
			File: filepath.Join(ziraDir, "bookmarks.json"),
		},
		Tools: ToolsConfig{
			DefaultTimeout:  30 * time.Second,
			FactSheetPath:   filepath.Join(ziraDir, "fact_sheet.txt"),
			RetrieverK:      5,
			ChunkSize:       500,
			ChunkOverlap:    100,
			SearchEndpoint:  "https://html.duckduckgo.com/html/",
			WeatherEndpoint: "https://wttr.in",
			CasesDBPath:     filepath.Join(ziraDir, "cases.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(ziraDir, "logs", "zira.log"),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// Load reads configuration from the default location (~/.zira/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFromPath(filepath.Join(homeDir, ".zira", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: ZIRA_LLM_PROVIDERS_GEMINI_API_KEY
	v.SetEnvPrefix("ZIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Session.Checkpoint.DBPath = expandPath(cfg.Session.Checkpoint.DBPath)
	cfg.Bookmarks.File = expandPath(cfg.Bookmarks.File)
	cfg.Tools.FactSheetPath = expandPath(cfg.Tools.FactSheetPath)
	cfg.Tools.CasesDBPath = expandPath(cfg.Tools.CasesDBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	cfg.applyProviderKeys()

	return &cfg, nil
}

// providerKeyEnv lists the conventional vendor variables consulted when a
// provider has no api_key in the file.
var providerKeyEnv = map[string]string{
	"gemini": "GOOGLE_API_KEY",
	"openai": "OPENAI_API_KEY",
}

func (c *Config) applyProviderKeys() {
	for name, envKey := range providerKeyEnv {
		p, ok := c.LLM.Providers[name]
		if !ok || p.APIKey != "" {
			continue
		}
		if key := os.Getenv(envKey); key != "" {
			p.APIKey = key
			c.LLM.Providers[name] = p
		}
	}
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the Zira data directory path (~/.zira).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".zira")
}

// GetConfigPath returns the full path to the config file.
func (c *Config) GetConfigPath() string {
	return filepath.Join(c.GetDataDir(), "config.yaml")
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Logging.File),
		filepath.Dir(c.Session.Checkpoint.DBPath),
		filepath.Dir(c.Bookmarks.File),
		filepath.Dir(c.Tools.CasesDBPath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Provider returns the configuration of the default provider.
func (c *Config) Provider() (string, ProviderConfig) {
	return c.LLM.DefaultProvider, c.LLM.Providers[c.LLM.DefaultProvider]
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Assistant.Name) == "" {
		return fmt.Errorf("assistant.name cannot be empty")
	}
	if strings.ContainsAny(c.Assistant.Name, " \t") {
		return fmt.Errorf("assistant.name '%s' must be a single word", c.Assistant.Name)
	}

	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}
	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1")
	}
	if c.Agent.MaxParallelTools < 1 {
		return fmt.Errorf("agent.max_parallel_tools must be at least 1")
	}
	if c.Agent.Retry.MaxAttempts < 1 {
		return fmt.Errorf("agent.retry.max_attempts must be at least 1")
	}
	if c.Agent.Retry.BaseDelay < 0 || c.Agent.Retry.JitterUnit < 0 {
		return fmt.Errorf("agent.retry delays cannot be negative")
	}

	if c.Session.MaxMessages < 0 {
		return fmt.Errorf("session.max_messages cannot be negative")
	}
	if c.Session.Checkpoint.Enabled && c.Session.Checkpoint.DBPath == "" {
		return fmt.Errorf("session.checkpoint.db_path is required when checkpointing is enabled")
	}

	if c.Bookmarks.File == "" {
		return fmt.Errorf("bookmarks.file cannot be empty")
	}

	if c.Tools.RetrieverK < 1 {
		return fmt.Errorf("tools.retriever_k must be at least 1")
	}
	if c.Tools.ChunkSize < 1 || c.Tools.ChunkOverlap < 0 || c.Tools.ChunkOverlap >= c.Tools.ChunkSize {
		return fmt.Errorf("tools.chunk_overlap must be smaller than tools.chunk_size")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// API keys may end up in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
