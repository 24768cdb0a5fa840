// Package config provides configuration management for the Zira assistant.
//
// Configuration lives in ~/.zira/config.yaml and is created with defaults on
// first use. Every key can be overridden from the environment with the ZIRA_
// prefix, nested keys joined by underscores:
//
//   - ZIRA_LLM_DEFAULT_PROVIDER=ollama
//   - ZIRA_LLM_PROVIDERS_GEMINI_API_KEY=...
//   - ZIRA_AGENT_MAX_ITERATIONS=12
//   - ZIRA_LOGGING_LEVEL=debug
//
// When a provider has no api_key, GOOGLE_API_KEY (gemini) and OPENAI_API_KEY
// (openai) are consulted.
package config
