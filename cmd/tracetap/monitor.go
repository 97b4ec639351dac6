package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tracetap/internal/app"
	"tracetap/internal/domain"
	"tracetap/internal/infra/config"
)

type monitorOptions struct {
	pid         int
	pipeFile    string
	system      string
	interval    int
	providers   []string
	decoder     string
	metricsAddr string
	wsAddr      string
	noConsole   bool
}

func newMonitorCmd(root *rootOptions) *cobra.Command {
	opts := &monitorOptions{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Attach to a process or pipe and stream its counters",
		Example: "  tracetap monitor -p 4242 -s checkout -i 1 --decoder 'nettrace-decode --json'\n" +
			"  tracetap monitor -f /tmp/checkout.events -s checkout --metrics-addr :9090",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(root.logger)
			cfg, err := application.LoadConfig(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			result, err := application.Monitor(ctx, cfg, app.MonitorOptions{
				Out:   out,
				Color: isTerminal(out),
			})
			if err != nil {
				return err
			}
			return app.ResultError(result)
		},
	}

	flags := cmd.Flags()
	onceIntVarP(flags, &opts.pid, "pid", "p", 0, "process id to attach to")
	onceStringVarP(flags, &opts.pipeFile, "pipe", "f", "", "read decoded events from this pipe or file")
	onceStringVarP(flags, &opts.system, "system", "s", "", "system name attached to exported counters")
	onceIntVarP(flags, &opts.interval, "interval", "i", domain.DefaultIntervalSeconds, "counter interval in seconds")
	flags.StringArrayVar(&opts.providers, "provider", nil, "provider alias or name to enable (repeatable)")
	flags.StringVar(&opts.decoder, "decoder", "", "command that turns the binary trace stream into JSON lines")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	flags.StringVar(&opts.wsAddr, "ws-addr", "", "broadcast counters and events to websocket clients on this address")
	flags.BoolVar(&opts.noConsole, "no-console", false, "do not print counters to stdout")

	return cmd
}

// apply lays the flags that were given over the loaded configuration and
// checks the command-line rules.
func (o *monitorOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("pid") {
		cfg.Target.PID = o.pid
		cfg.Target.PipeFile = ""
	}
	if flags.Changed("pipe") {
		cfg.Target.PipeFile = o.pipeFile
		if !flags.Changed("pid") {
			cfg.Target.PID = 0
		}
	}
	if flags.Changed("system") {
		cfg.Target.System = o.system
	}
	if flags.Changed("interval") {
		cfg.SetInterval(o.interval)
	}
	if flags.Changed("decoder") {
		cfg.DecoderCommand = o.decoder
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.ListenAddress = o.metricsAddr
		cfg.Observability.MetricsEnabled = o.metricsAddr != ""
		cfg.Observability.HealthzEnabled = o.metricsAddr != ""
	}
	if flags.Changed("ws-addr") {
		cfg.Broadcast.ListenAddress = o.wsAddr
	}
	if o.noConsole {
		cfg.Console.Enabled = false
	}
	if len(o.providers) > 0 {
		cfg.SetProviderNames(o.providers)
	}

	switch {
	case flags.Changed("pid") && flags.Changed("pipe"):
		return errors.New("only one of -p or -f may be given")
	case cfg.Target.PID == 0 && cfg.Target.PipeFile == "":
		return errors.New("one of -p or -f is required")
	case cfg.IntervalSeconds <= 0:
		return fmt.Errorf("interval must be > 0, got %d", cfg.IntervalSeconds)
	case cfg.Target.System == "":
		return errors.New("-s is required")
	}
	return nil
}

// isTerminal reports whether w is the process stdout and color detection
// found a terminal there.
func isTerminal(w io.Writer) bool {
	return w == io.Writer(os.Stdout) && !color.NoColor
}
