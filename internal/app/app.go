package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tracetap/internal/domain"
	"tracetap/internal/infra/config"
	"tracetap/internal/infra/consumers"
	"tracetap/internal/infra/process"
	"tracetap/internal/infra/providers"
	"tracetap/internal/infra/telemetry"
	"tracetap/internal/infra/tracing"
)

const (
	heartbeatName     = "event-stream"
	minHeartbeatStale = 5 * time.Second
)

type App struct {
	logger *zap.Logger
}

// MonitorOptions controls where the console observer writes.
type MonitorOptions struct {
	Out   io.Writer
	Color bool
	// Registry receives internal and exported metrics. A fresh registry is
	// created when nil.
	Registry *prometheus.Registry
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore)).Named("app"),
	}
}

// Monitor runs one tracing session with the observers and servers cfg
// enables. It returns when the session ends; servers are shut down with
// it. Only attach failures and server failures are returned as errors.
func (a *App) Monitor(ctx context.Context, cfg config.Config, opts MonitorOptions) (domain.SessionResult, error) {
	if err := config.Validate(cfg); err != nil {
		return domain.SessionResult{}, err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	specs := cfg.Providers
	if len(specs) == 0 {
		specs = providers.Default(cfg.IntervalSeconds)
	}
	transport, factory, err := a.buildTransport(cfg)
	if err != nil {
		return domain.SessionResult{}, err
	}
	if !cfg.UsesPipe() {
		a.describeTarget(ctx, cfg.Target.PID)
	}

	sessionLogger := a.logger
	var logs *telemetry.LogBroadcaster
	if cfg.Broadcast.ListenAddress != "" {
		logs = telemetry.NewLogBroadcaster(zapcore.WarnLevel)
		sessionLogger = logs.Tee(a.logger)
	}

	session := tracing.NewSession(cfg.Target.PID, specs, transport,
		tracing.WithLogger(sessionLogger),
		tracing.WithMetrics(telemetry.NewPrometheusMetrics(registry)),
		tracing.WithSourceFactory(factory),
	)

	health := telemetry.NewHealthTracker()
	stale := 3 * time.Duration(cfg.IntervalSeconds) * time.Second
	if stale < minHeartbeatStale {
		stale = minHeartbeatStale
	}
	beat := health.Register(heartbeatName, stale)
	session.SubscribeCounters(func(domain.CounterMeasurement) { beat.Beat() })
	session.SubscribeEvents(func(domain.Event) { beat.Beat() })

	if cfg.Console.Enabled {
		console := consumers.NewConsole(opts.Out, opts.Color)
		session.SubscribeCounters(console.ObserveCounter)
	}
	if cfg.Observability.MetricsEnabled {
		exporter := consumers.NewExporter(registry, cfg.Target.System)
		session.SubscribeCounters(exporter.ObserveCounter)
	}
	var hub *consumers.Hub
	if cfg.Broadcast.ListenAddress != "" {
		hub = consumers.NewHub(cfg.Target.System, cfg.Broadcast.MaxClients, a.logger)
		session.SubscribeCounters(hub.ObserveCounter)
		session.SubscribeEvents(hub.ObserveEvent)
	}

	a.logger.Info("monitoring started",
		telemetry.SessionIDField(session.ID()),
		telemetry.PIDField(cfg.Target.PID),
		zap.String("system", cfg.Target.System),
		zap.String("pipe", cfg.Target.PipeFile),
		zap.Int("providers", len(specs)),
		zap.Int("intervalSeconds", cfg.IntervalSeconds),
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	group, groupCtx := errgroup.WithContext(runCtx)

	var result domain.SessionResult
	group.Go(func() error {
		defer cancelRun()
		var err error
		result, err = session.Start(groupCtx)
		return err
	})
	if cfg.Observability.MetricsEnabled || cfg.Observability.HealthzEnabled {
		group.Go(func() error {
			return telemetry.StartHTTPServer(groupCtx, telemetry.HTTPServerOptions{
				Addr:          cfg.Observability.ListenAddress,
				EnableMetrics: cfg.Observability.MetricsEnabled,
				EnableHealthz: cfg.Observability.HealthzEnabled,
				Health:        health,
				Registry:      registry,
			}, a.logger)
		})
	}
	if hub != nil {
		entries := logs.Subscribe(groupCtx)
		group.Go(func() error {
			for entry := range entries {
				hub.ObserveLog(entry)
			}
			return nil
		})
		group.Go(func() error {
			return consumers.StartHubServer(groupCtx, cfg.Broadcast.ListenAddress, hub, a.logger)
		})
	}

	runErr := group.Wait()
	a.awaitQuiescence(session, cfg.StopTimeout)
	return result, runErr
}

// awaitQuiescence gives the session goroutines a bounded window to exit
// after Start returned.
func (a *App) awaitQuiescence(session *tracing.Session, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := session.Wait(waitCtx); err != nil {
		a.logger.Warn("session did not quiesce before stop timeout",
			telemetry.SessionIDField(session.ID()),
			zap.Duration("timeout", timeout),
		)
	}
}

func (a *App) describeTarget(ctx context.Context, pid int) {
	info, err := process.Describe(ctx, pid)
	if err != nil {
		if !errors.Is(err, domain.ErrProcessNotFound) {
			a.logger.Debug("process inspection failed", telemetry.PIDField(pid), zap.Error(err))
		}
		return
	}
	a.logger.Info("target process",
		telemetry.PIDField(pid),
		zap.String("name", info.Name),
		zap.String("cmdline", info.Cmdline),
		zap.Time("startedAt", info.StartedAt),
	)
}

// ResultError turns a non-graceful session result into an error for the
// command line.
func ResultError(result domain.SessionResult) error {
	if result.Graceful() {
		return nil
	}
	if result.Err != nil {
		return fmt.Errorf("session %s: %w", result.Reason, result.Err)
	}
	return fmt.Errorf("session %s", result.Reason)
}
