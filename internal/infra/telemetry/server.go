package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tracetap/internal/domain"
)

const shutdownGrace = 5 * time.Second

type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	Health        *HealthTracker
	Registry      prometheus.Gatherer
}

// StartHTTPServer serves /metrics and /healthz until ctx ends. It returns
// nil immediately when both endpoints are disabled.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if !opts.EnableMetrics && !opts.EnableHealthz {
		return nil
	}
	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultObservabilityListenAddress
	}
	return Serve(ctx, "observability", addr, ObservabilityHandler(opts), logger,
		zap.Bool("metrics", opts.EnableMetrics),
		zap.Bool("healthz", opts.EnableHealthz),
	)
}

// ObservabilityHandler routes the endpoints enabled in opts.
func ObservabilityHandler(opts HTTPServerOptions) http.Handler {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	if opts.EnableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if opts.EnableHealthz {
		mux.Handle("/healthz", healthHandler(opts.Health))
	}
	return mux
}

// Serve binds addr and serves handler until ctx ends. Bind failures are
// returned before the call blocks.
func Serve(ctx context.Context, name, addr string, handler http.Handler, logger *zap.Logger, fields ...zap.Field) error {
	op := name + ".Serve"
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return domain.E(domain.CodeUnavailable, op, fmt.Sprintf("listen %s: %v", addr, err), err)
	}
	return ServeListener(ctx, name, listener, handler, logger, fields...)
}

// ServeListener serves handler on listener until ctx ends and closes the
// listener on return.
func ServeListener(ctx context.Context, name string, listener net.Listener, handler http.Handler, logger *zap.Logger, fields ...zap.Field) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("server", name))

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()
	logger.Info("listening", append([]zap.Field{zap.Stringer("addr", listener.Addr())}, fields...)...)

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return domain.E(domain.CodeInternal, name+".Serve", "serve", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		_ = server.Close()
		return err
	}
	<-served
	logger.Info("stopped")
	return nil
}

func healthHandler(tracker *HealthTracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: HealthStatusOK}
		if tracker != nil {
			report = tracker.Report()
		}

		status := http.StatusOK
		if report.Status != HealthStatusOK {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
