// Package main is the entry point for the Zira CLI.
// Zira is a conversational command assistant: deterministic commands are
// answered locally and everything else goes through a tool-using reasoning
// engine with per-session memory.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/zira/internal/config"
	"github.com/normanking/zira/internal/logging"
)

var (
	version   = "0.1.0"
	cfgPath   string
	sessionID string
	verbose   bool
	log       *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zira",
		Short: "Zira - conversational command assistant",
		Long: `Zira answers known commands directly and hands everything else to a
reasoning engine that can call tools:
  • open / close applications and websites
  • weather, web search, a local fact sheet and a case log
  • directory bookmarks with fuzzy sub-command matching
  • per-session memory, checkpointed to SQLite

Start interactive mode:  zira
One-shot question:       zira ask "what's the weather in Oslo?"
Configuration:           zira config show`,
		PersistentPreRunE: initLogging,
		RunE:              runREPL,
		SilenceUsage:      true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.zira/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id to resume (default: a new id)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Zira v%s\n", version)
		},
	})

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logCfg *logging.Config
	if verbose {
		logCfg = logging.VerboseConfig()
	} else {
		logCfg = logging.DefaultConfig()
		logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
	}
	logCfg.FilePath = cfg.Logging.File

	log = logging.New(logCfg)
	logging.SetGlobal(log)
	if !verbose {
		// The REPL owns the terminal; logs go to the file only.
		logging.DisableConsoleOutput()
	}

	log.Info("Zira session started - logging to %s", cfg.Logging.File)
	if verbose {
		log.Debug("Config path: %s", getConfigPath())
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.Default().GetConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromPath(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name, pc := cfg.Provider()

			fmt.Println("Zira Configuration:")
			fmt.Println("───────────────────")
			fmt.Printf("Assistant:       %s\n", cfg.Assistant.Name)
			fmt.Printf("Provider:        %s (%s)\n", name, pc.Model)
			fmt.Printf("API Key:         %s\n", maskKey(pc.APIKey))
			fmt.Printf("Max Iterations:  %d\n", cfg.Agent.MaxIterations)
			fmt.Printf("Retry:           %d attempts, %s base\n", cfg.Agent.Retry.MaxAttempts, cfg.Agent.Retry.BaseDelay)
			fmt.Printf("Session Window:  %d messages, idle TTL %s\n", cfg.Session.MaxMessages, cfg.Session.IdleTTL)
			fmt.Printf("Checkpoints:     %t (%s)\n", cfg.Session.Checkpoint.Enabled, cfg.Session.Checkpoint.DBPath)
			fmt.Printf("Bookmarks:       %s\n", cfg.Bookmarks.File)
			fmt.Printf("Fact Sheet:      %s\n", cfg.Tools.FactSheetPath)
			fmt.Printf("Metrics:         %t (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
			fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(getConfigPath())
		},
	})

	return cmd
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
	}
}
