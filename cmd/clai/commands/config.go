// config.go implements `clai config`: inspecting the effective
// configuration and managing credentials (OS keyring and encrypted vault).
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evanmorren/clai/pkg/clai/agent"
)

// newConfigCmd creates the `clai config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration and manage credentials",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigVaultInitCmd(),
		newConfigVaultSetCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			masked := *cfg
			if masked.API.APIKey != "" {
				masked.API.APIKey = "********"
			}

			out, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !agent.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available; use 'clai config vault-init' instead")
			}

			key, err := agent.ReadPassword("API key: ")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("empty API key")
			}

			if err := agent.StoreAPIKey(key); err != nil {
				return err
			}
			fmt.Println("API key stored in the OS keyring.")
			return nil
		},
	}
}

func newConfigVaultInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-init",
		Short: "Create an encrypted credential vault",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			vault := agent.NewVault(agent.VaultFile)
			if vault.Exists() {
				return fmt.Errorf("vault already exists at %s", agent.VaultFile)
			}

			password, err := agent.ReadPassword("New vault password: ")
			if err != nil {
				return err
			}
			confirm, err := agent.ReadPassword("Repeat password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			if err := vault.Create(password); err != nil {
				return err
			}
			fmt.Printf("Vault created at %s.\n", agent.VaultFile)
			return nil
		},
	}
}

func newConfigVaultSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-set",
		Short: "Store the API key in the encrypted vault",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			vault := agent.NewVault(agent.VaultFile)
			if !vault.Exists() {
				return fmt.Errorf("no vault found; run 'clai config vault-init' first")
			}

			password, err := agent.ReadPassword("Vault password: ")
			if err != nil {
				return err
			}
			if err := vault.Unlock(password); err != nil {
				return err
			}
			defer vault.Lock()

			key, err := agent.ReadPassword("API key: ")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("empty API key")
			}

			if err := vault.Set("api_key", key); err != nil {
				return err
			}
			fmt.Println("API key stored in the vault.")
			return nil
		},
	}
}
