package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tracetap/internal/app"
)

type rootOptions struct {
	configPath string
	debug      bool
	quiet      bool
	logger     *zap.Logger
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "tracetap",
		Short:         "Stream runtime counters and diagnostic events from a running process",
		Version:       fmt.Sprintf("%s (%s)", app.Version, app.Build),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.NewLogger(opts.debug, opts.quiet)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")
	root.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "only log warnings and errors")

	root.AddCommand(
		newMonitorCmd(opts),
		newProvidersCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
