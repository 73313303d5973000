package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigValidateCmd(root))
	return cmd
}

func newConfigShowCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := os.Getenv("PANOSTITCH_CONFIG")
			if cfgPath == "" {
				cfgPath = "(default) ~/.config/panostitch/config.json"
			}
			cmd.Printf("Current configuration\n")
			cmd.Printf("Config file: %s\n\n", cfgPath)

			out, err := json.MarshalIndent(root.cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

func newConfigValidateCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for invalid values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			cmd.Println("configuration ok")
			return nil
		},
	}
}
