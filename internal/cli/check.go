package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile and launch the scripts without running a frame",
		Long: `Compile every script under the data and user directories, launch the
object tree, and report what was loaded. Nothing is ticked.

Example:
  grove check --data ./game`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			rt, err := start(cfg, []string{cmd.Root().Name()})
			if err != nil {
				return err
			}
			defer rt.Shutdown()

			vm := rt.VM()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "programs: %d\n", vm.Pool().Len())
			for _, name := range vm.Pool().Names() {
				p, _ := vm.Pool().Get(name)
				fmt.Fprintf(out, "  %-24s %s\n", name, p.Origin)
			}
			fmt.Fprintf(out, "objects: %d\n", vm.ObjectCount())
			fmt.Fprintf(out, "test mode: %t\n", rt.IsTestMode())
			return nil
		},
	}
}
