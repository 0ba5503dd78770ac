// audit.go implements `clai audit`: prints recent entries from the tool
// execution audit trail.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanmorren/clai/pkg/clai/agent"
)

// newAuditCmd creates the `clai audit` command.
func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent tool executions and approval decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := buildLogger(cmd, cfg)

			if !cfg.Audit.Enabled || cfg.Audit.Path == "" {
				return fmt.Errorf("audit log is disabled in the configuration")
			}

			log, err := agent.OpenAuditLog(cfg.Audit.Path, logger)
			if err != nil {
				return err
			}
			defer log.Close()

			n, _ := cmd.Flags().GetInt("limit")
			entries := log.Recent(n)
			if len(entries) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}
			for _, e := range entries {
				fmt.Println(e)
			}
			fmt.Printf("\n%d entries total.\n", log.Count())
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	return cmd
}
