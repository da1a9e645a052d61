package cli

import (
	"github.com/spf13/cobra"

	"github.com/phanxgames/grove"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run [-- script args...]",
		Short: "Open a window and run the game",
		Long: `Open a window and run the scripts found under the data directory.

Arguments after -- are passed to the Application's script table.

Example:
  grove run --data ./game
  grove run --data ./game --user ~/.mygame -- --level 2`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Input = grove.NewKeyboardSource()
			rt, err := start(cfg, append([]string{cmd.Root().Name()}, args...))
			if err != nil {
				return err
			}
			if err := grove.Run(rt); err != nil {
				return WrapExitError(ExitFailure, "run", err)
			}
			return nil
		},
	}
}
