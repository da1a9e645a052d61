package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phanxgames/grove/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print engine and object runtime versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "engine:  %s\n", version.Engine)
			fmt.Fprintf(out, "runtime: %s (minimum %s)\n", version.Runtime, version.MinRuntime)
		},
	}
}
