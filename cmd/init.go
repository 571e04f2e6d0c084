package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/jsonpartial/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: `Write the default configuration to .jsonpartial/config.yaml, or to the
path given with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.LocalConfigPath
			if a.cfgFile != "" {
				path = a.cfgFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}
