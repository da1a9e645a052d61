// Package cli implements the grove command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phanxgames/grove"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	UserDir    string
	LogLevel   string
	Dev        bool

	// Logger overrides the logger built from LogLevel (for testing).
	Logger *zap.Logger
}

// NewRootCommand creates the root command for the grove CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grove",
		Short: "grove - scripted 2D game runtime",
		Long:  "Runs Lua object scripts from a data directory, with an optional user directory of overrides.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", "", "base content directory")
	cmd.PersistentFlags().StringVar(&opts.UserDir, "user", "", "override directory")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.Dev, "dev", false, "human-readable logs")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewHeadlessCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// loadConfig reads the config file, if any, and applies the global flags
// over it.
func (opts *RootOptions) loadConfig() (grove.Config, error) {
	cfg := grove.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = grove.LoadConfig(opts.ConfigPath); err != nil {
			return grove.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
		}
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.UserDir != "" {
		cfg.UserDir = opts.UserDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	} else {
		log, err := grove.NewLogger(cfg.LogLevel, opts.Dev)
		if err != nil {
			return grove.Config{}, WrapExitError(ExitCommandError, "invalid log level", err)
		}
		cfg.Logger = log
	}
	return cfg, nil
}

// start builds and initializes a runtime. Initialization errors are
// logged and returned with ExitFailure; the runtime is shut down.
func start(cfg grove.Config, args []string) (*grove.Runtime, error) {
	cfg.Fatal = deferExit
	rt := grove.NewRuntime(cfg)
	if err := rt.Initialize(args); err != nil {
		exit := fail(rt, "initialize runtime", err)
		rt.Shutdown()
		return nil, exit
	}
	return rt, nil
}

// fail logs a fatal runtime error through rt and wraps it as ExitFailure.
func fail(rt *grove.Runtime, msg string, err error) error {
	rt.Fail(err)
	return WrapExitError(ExitFailure, msg, err)
}

// deferExit is the runtime's fatal handler under the CLI. Commands return
// the error and main exits with its code.
func deferExit(error) {}

func errorf(code int, format string, args ...any) *ExitError {
	return NewExitError(code, fmt.Sprintf(format, args...))
}
