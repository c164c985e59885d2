package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/buildinfo"
)

// Command creates the command that prints build information.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Current())
		},
	}
}
