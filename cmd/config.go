package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/jsonpartial/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a config key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.v.IsSet(args[0]) {
				return fmt.Errorf("unknown config key %q", args[0])
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.v.Get(args[0]))
			return err
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a config key, keeping comments in the file",
		Long: `Set a dotted config key such as watch.debounce in the config file in use,
or .jsonpartial/config.yaml when there is none.

Examples:
  jsonpartial config set strict false
  jsonpartial config set tracing.exporter stdout`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			if err := config.SaveValue(path, args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "set %s in %s\n", args[0], path)
			return err
		},
	})
	return configCmd
}
