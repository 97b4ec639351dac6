package app

import (
	"context"
	"io"
	"time"

	"tracetap/internal/domain"
	"tracetap/internal/infra/config"
	"tracetap/internal/infra/eventsource"
	"tracetap/internal/infra/ipc"
	"tracetap/internal/infra/pipe"
)

// buildTransport picks the pipe or IPC transport and the matching event
// source. A configured decoder command is used for either; without one the
// stream must already be JSON lines.
func (a *App) buildTransport(cfg config.Config) (domain.Transport, domain.SourceFactory, error) {
	factory := domain.SourceFactory(eventsource.JSONLinesFactory)
	if cfg.DecoderCommand != "" {
		external, err := eventsource.ExternalFactory(cfg.DecoderCommand, a.logger)
		if err != nil {
			return nil, nil, err
		}
		factory = external
	}

	if cfg.UsesPipe() {
		return pipe.NewTransport(cfg.Target.PipeFile, cfg.AttachTimeout, a.logger), factory, nil
	}
	transport := ipc.NewTransport(ipc.Options{
		CircularBufferMB: domain.DefaultCircularBufferMB,
		StopTimeout:      cfg.StopTimeout,
		Logger:           a.logger,
	})
	return withAttachTimeout(transport, cfg.AttachTimeout), factory, nil
}

// attachTimeout bounds Attach and the StartStream handshake. The stream
// itself is not subject to the deadline.
type attachTimeout struct {
	inner   domain.Transport
	timeout time.Duration
}

func withAttachTimeout(inner domain.Transport, timeout time.Duration) domain.Transport {
	if timeout <= 0 {
		return inner
	}
	return attachTimeout{inner: inner, timeout: timeout}
}

func (t attachTimeout) Attach(ctx context.Context, pid int) (domain.DiagnosticSession, error) {
	attachCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	diag, err := t.inner.Attach(attachCtx, pid)
	if err != nil {
		return nil, err
	}
	return timedSession{DiagnosticSession: diag, timeout: t.timeout}, nil
}

type timedSession struct {
	domain.DiagnosticSession
	timeout time.Duration
}

func (s timedSession) StartStream(ctx context.Context, specs []domain.ProviderSpec) (io.ReadCloser, error) {
	startCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.DiagnosticSession.StartStream(startCtx, specs)
}
