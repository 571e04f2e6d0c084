package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/jsonpartial/internal/presentation"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded partials as JSON",
		Long: `List every loaded partial with the names it references and the other
names registered for the same fragment.

Examples:
  # List partials from a directory
  jsonpartial list --partials ./partials

  # Partials nothing else references
  jsonpartial list -p ./partials | jq -r '.[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := a.newEngine()
			if _, err := a.loadPartials(cmd.Context(), engine); err != nil {
				return err
			}

			formatter := presentation.NewFormatter(cmd.OutOrStdout())
			return formatter.FormatPartials(presentation.FromRegistry(engine.Partials()))
		},
	}
}
