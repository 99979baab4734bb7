package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fomo/internal/export"
)

func NewExportCmd(deps *Dependencies) *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export <meeting-id>",
		Short: "Export an archived meeting as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			meeting, err := deps.Archive.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if outPath == "" {
				return export.Render(cmd.OutOrStdout(), meeting, f)
			}

			file, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := export.Render(file, meeting, f); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", meeting.ID, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
