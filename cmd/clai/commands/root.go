// Package commands implements the clai CLI commands using cobra.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/evanmorren/clai/pkg/clai/agent"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clai",
		Short: "clai - terminal AI coding assistant",
		Long: `clai is a terminal coding assistant with an agentic tool loop.
The model can read and write files, list directories, and run shell
commands; destructive writes require your approval first.

Examples:
  clai chat "add error handling to main.go"
  clai chat                # interactive mode
  clai models
  clai config set-key`,
		Version: version,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newModelsCmd(),
		newConfigCmd(),
		newAuditCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// loadConfig resolves the config file from the --config flag or standard
// locations, falling back to defaults when none exists.
func loadConfig(cmd *cobra.Command) (*agent.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = agent.FindConfigFile()
	}
	if path == "" {
		return agent.DefaultConfig(), nil
	}
	return agent.LoadConfigFromFile(path)
}

// buildLogger creates the process logger from config; --verbose forces
// debug-level text output.
func buildLogger(cmd *cobra.Command, cfg *agent.Config) *slog.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return agent.LoggingConfig{Level: "debug", Format: "text"}.NewLogger(os.Stderr)
	}
	return cfg.Logging.NewLogger(os.Stderr)
}
