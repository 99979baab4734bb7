package cli

import (
	"github.com/spf13/cobra"

	"fomo/internal/export"
)

func NewShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Print an archived meeting as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meeting, err := deps.Archive.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return export.Render(cmd.OutOrStdout(), meeting, export.FormatMarkdown)
		},
	}
}
