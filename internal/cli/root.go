package cli

import (
	"github.com/spf13/cobra"

	"fomo/internal/ports"
)

type Dependencies struct {
	Archive ports.ArchiveStore
	Backend ports.CaptureBackend
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fomoctl",
		Short:         "Inspect and manage archived FOMO meetings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewExportCmd(deps))
	rootCmd.AddCommand(NewHealthCmd(deps))

	return rootCmd
}
