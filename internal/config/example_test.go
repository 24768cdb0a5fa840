package config_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/normanking/zira/internal/config"
)

// ExampleLoadFromPath loads (and on first use creates) a configuration file.
func ExampleLoadFromPath() {
	dir, err := os.MkdirTemp("", "zira-config")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg, err := config.LoadFromPath(filepath.Join(dir, "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println(cfg.Assistant.Name)
	fmt.Println(cfg.Agent.MaxIterations)
	// Output:
	// Zira
	// 8
}

// ExampleConfig_Validate shows how invalid values are reported.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Agent.MaxIterations = 0

	fmt.Println(cfg.Validate())
	// Output: agent.max_iterations must be at least 1
}
