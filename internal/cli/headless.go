package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phanxgames/grove"
)

// HeadlessOptions holds flags for the headless command.
type HeadlessOptions struct {
	*RootOptions
	Frames      int
	Script      string
	MetricsAddr string
}

// NewHeadlessCommand creates the headless command.
func NewHeadlessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HeadlessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "headless [-- script args...]",
		Short: "Tick the game without a window",
		Long: `Tick the game at its configured rate without opening a window.

With --script, a JSON test script drives input and checks the object tree;
the command fails when an expectation does not hold.

Example:
  grove headless --data ./game --frames 300
  grove headless --data ./game --script smoke.json
  grove headless --data ./game --metrics-addr :9100`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(opts, cmd, args)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 600, "maximum frames to run")
	cmd.Flags().StringVar(&opts.Script, "script", "", "JSON test script")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runHeadless(opts *HeadlessOptions, cmd *cobra.Command, args []string) error {
	if opts.Frames <= 0 {
		return errorf(ExitCommandError, "--frames must be positive, got %d", opts.Frames)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var runner *grove.TestRunner
	if opts.Script != "" {
		data, err := os.ReadFile(opts.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "read test script", err)
		}
		if runner, err = grove.LoadTestScript(data); err != nil {
			return WrapExitError(ExitCommandError, "invalid test script", err)
		}
	}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.Metrics = reg
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cfg.Logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	rt, err := start(cfg, append([]string{cmd.Root().Name()}, args...))
	if err != nil {
		return err
	}
	defer rt.Shutdown()

	frames, err := grove.RunHeadless(rt, runner, opts.Frames)
	if err != nil {
		return fail(rt, fmt.Sprintf("frame %d", frames), err)
	}
	if runner != nil && !runner.Done() {
		return errorf(ExitFailure, "test script unfinished after %d frames", frames)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ran %d frames\n", frames)
	return nil
}
