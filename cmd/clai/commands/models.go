// models.go implements `clai models`: lists models available at the
// configured provider endpoint.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanmorren/clai/pkg/clai/agent"
)

// newModelsCmd creates the `clai models` command.
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available at the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := buildLogger(cmd, cfg)
			agent.ResolveAPIKey(cfg, logger)

			llm, err := agent.NewLLMClient(cfg, logger)
			if err != nil {
				return err
			}

			models, err := llm.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			if len(models) == 0 {
				fmt.Println("No models reported by the provider.")
				return nil
			}
			for _, m := range models {
				if m.OwnedBy != "" {
					fmt.Printf("%-40s %s\n", m.ID, m.OwnedBy)
				} else {
					fmt.Println(m.ID)
				}
			}
			return nil
		},
	}
}
