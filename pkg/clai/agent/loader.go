// Package agent – loader.go handles loading configuration from YAML files
// with env-var expansion and .env support.
package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, and bare $VAR references
// in config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Loads .env files first, expands environment variables in the YAML,
// overlays the result on DefaultConfig, and resolves paths relative to the
// config file's directory.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := ParseConfig([]byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	resolveRelativePaths(cfg, path)
	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config, starting from defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML with restricted permissions.
// A real API key is replaced with an env-var reference before writing.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.API.APIKey = sanitizeSecret(cfg.API.APIKey, "CLAI_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"clai.yaml",
		"clai.yml",
		"config.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "clai", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from standard locations.
// godotenv does not overwrite variables that are already set.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, and $VAR references with
// their environment values. Unset variables without a default keep their
// placeholder so resolveSecrets can spot them.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName, defVal, bareVar := sub[1], sub[2], sub[3]

		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if strings.Contains(match, ":-") {
			return defVal
		}
		return match
	})
}

// resolveSecrets fills the API key from environment variables when the
// config value is empty or an unexpanded placeholder.
func resolveSecrets(cfg *Config) {
	if cfg.API.APIKey != "" && !IsEnvReference(cfg.API.APIKey) {
		return
	}
	for _, envVar := range []string{"CLAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		if key := os.Getenv(envVar); key != "" {
			cfg.API.APIKey = key
			return
		}
	}
}

// resolveRelativePaths anchors relative paths to the config file's
// directory so clai works regardless of the current working directory.
func resolveRelativePaths(cfg *Config, configPath string) {
	configDir := filepath.Dir(configPath)

	if cfg.Audit.Path != "" {
		cfg.Audit.Path = resolvePathFromConfig(cfg.Audit.Path, configDir)
	}
	if cfg.SystemPromptFile != "" {
		cfg.SystemPromptFile = resolvePathFromConfig(cfg.SystemPromptFile, configDir)
	}
}

// resolvePathFromConfig makes a path absolute, resolving relative paths
// against the config directory and expanding ~.
func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

// sanitizeSecret replaces a real secret with an env var reference for safe
// storage in config files.
func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	// Key came from the keyring or vault; never persist it to YAML.
	return ""
}

// IsEnvReference checks if a string is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// checkFilePermissions warns if the config file is group/world-readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
