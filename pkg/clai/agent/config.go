// Package agent – config.go defines the configuration structures for clai.
package agent

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultSystemPrompt is used when no system_prompt_file is configured.
const DefaultSystemPrompt = `You are clai, a coding assistant running in the user's terminal.
You can read and write files, list directories, and run shell commands
through the provided tools. Destructive writes are shown to the user for
approval first. When the task is done, call the finished tool with a short
summary. Be concise and practical.`

// Config holds all clai configuration.
type Config struct {
	// Model is the LLM model to use (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// API configures the completion provider endpoint.
	API APIConfig `yaml:"api"`

	// Agent configures the turn loop limits.
	Agent AgentLimits `yaml:"agent"`

	// SystemPromptFile points to a file whose contents replace the default
	// system prompt. Optional.
	SystemPromptFile string `yaml:"system_prompt_file"`

	// Audit configures the SQLite tool-execution audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds provider endpoint settings.
type APIConfig struct {
	// BaseURL is the API root (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey is the provider credential. Prefer the keyring or vault over
	// putting a real key here; ${VAR} references are expanded on load.
	APIKey string `yaml:"api_key"`

	// Provider pins the provider variant ("openai", "anthropic",
	// "openrouter", "groq", "ollama"). Empty = detect from base_url.
	Provider string `yaml:"provider"`
}

// AgentLimits bounds a single turn.
type AgentLimits struct {
	// MaxToolDepth is the max tool-resolution rounds per turn.
	MaxToolDepth int `yaml:"max_tool_depth"`

	// MaxTokens is the completion token limit per request.
	MaxTokens int `yaml:"max_tokens"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Enabled turns the audit log on/off.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default clai configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: "gpt-4o-mini",
		API: APIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Agent: AgentLimits{
			MaxToolDepth: DefaultMaxDepth,
			MaxTokens:    DefaultMaxTokens,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "~/.local/share/clai/audit.db",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// SystemPrompt loads the configured system prompt file, falling back to the
// built-in default when none is configured.
func (c *Config) SystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(resolvePath(c.SystemPromptFile))
	if err != nil {
		return "", fmt.Errorf("reading system prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// NewLogger builds a slog logger per the logging config, writing to w.
func (lc LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(lc.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
