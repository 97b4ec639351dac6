package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tracetap/internal/domain"
	"tracetap/internal/infra/telemetry"
)

// Session monitors a single process under a fixed provider set. It is
// one-shot: once Start returns, the session cannot be started again.
type Session struct {
	id        string
	pid       int
	providers []domain.ProviderSpec
	transport domain.Transport
	newSource domain.SourceFactory
	logger    *zap.Logger
	metrics   domain.Metrics
	now       func() time.Time

	state     atomic.Int32
	observers registry

	stopOnce sync.Once
	stopCh   chan struct{}

	diagMu    sync.Mutex
	diag      domain.DiagnosticSession
	closeOnce sync.Once

	done chan struct{}
}

// Option customizes a Session.
type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics domain.Metrics) Option {
	return func(s *Session) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithSourceFactory sets how the raw stream is turned into events.
func WithSourceFactory(factory domain.SourceFactory) Option {
	return func(s *Session) {
		if factory != nil {
			s.newSource = factory
		}
	}
}

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession prepares a session. Nothing is attached until Start.
func NewSession(pid int, providers []domain.ProviderSpec, transport domain.Transport, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		pid:       pid,
		providers: domain.CloneProviders(providers),
		transport: transport,
		logger:    zap.NewNop(),
		metrics:   telemetry.NewNoopMetrics(),
		now:       time.Now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("tracing").With(
		telemetry.SessionIDField(s.id),
		telemetry.PIDField(s.pid),
	)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ProcessID() int {
	return s.pid
}

// Providers returns a copy of the provider set fixed at construction.
func (s *Session) Providers() []domain.ProviderSpec {
	return domain.CloneProviders(s.providers)
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// SubscribeCounters registers an observer for decoded counters.
func (s *Session) SubscribeCounters(observer domain.CounterObserver) {
	s.observers.addCounter(observer)
}

// SubscribeEvents registers an observer for non-counter events.
func (s *Session) SubscribeEvents(observer domain.EventObserver) {
	s.observers.addEvent(observer)
}

// Stop requests termination. It never blocks and may be called any number
// of times, before, during or after Start.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.state.CompareAndSwap(int32(domain.SessionRunning), int32(domain.SessionStopping))
}

// Done is closed once both the stream and the stop-wait goroutines have
// exited. Start may return before that happens.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is fully quiescent or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start attaches to the process and runs until the stream ends, the stream
// faults, Stop is called or ctx is cancelled, whichever comes first. Only
// attach failures are returned as errors; stream faults are reported in
// the result.
func (s *Session) Start(ctx context.Context) (domain.SessionResult, error) {
	if !s.state.CompareAndSwap(int32(domain.SessionCreated), int32(domain.SessionRunning)) {
		return domain.SessionResult{}, domain.E(domain.CodeFailedPrecond, "tracing.Start", "", domain.ErrSessionUsed)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := s.now()
	stream, source, err := s.open(ctx)
	if err != nil {
		s.state.Store(int32(domain.SessionStopped))
		close(s.done)
		code, _ := domain.CodeFrom(err)
		s.metrics.ObserveAttachFailure(code)
		s.logger.Error("attach failed",
			telemetry.EventField(telemetry.EventAttachFailure),
			zap.Error(err),
		)
		return domain.SessionResult{}, &domain.AttachError{PID: s.pid, Err: err}
	}
	s.logger.Info("session attached",
		telemetry.EventField(telemetry.EventAttachSuccess),
		zap.Int("providers", len(s.providers)),
	)

	results := make(chan domain.SessionResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- s.runStream(stream, source)
	}()
	go func() {
		defer wg.Done()
		results <- s.awaitStop(ctx)
	}()
	go func() {
		wg.Wait()
		close(s.done)
	}()

	result := <-results
	// Release the stop-wait goroutine when the stream finished first.
	s.Stop()
	s.state.Store(int32(domain.SessionStopped))
	s.metrics.ObserveSessionEnd(result.Reason)

	fields := []zap.Field{
		telemetry.EventField(telemetry.EventSessionStopped),
		telemetry.ReasonField(string(result.Reason)),
		telemetry.DurationField(s.now().Sub(started)),
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}
	s.logger.Info("session ended", fields...)
	return result, nil
}

func (s *Session) open(ctx context.Context) (io.ReadCloser, domain.EventSource, error) {
	if s.transport == nil {
		return nil, nil, domain.E(domain.CodeFailedPrecond, "tracing.Attach", "no transport configured", nil)
	}
	if s.newSource == nil {
		return nil, nil, domain.E(domain.CodeFailedPrecond, "tracing.Attach", "no event source configured", nil)
	}
	s.logger.Debug("attaching", telemetry.EventField(telemetry.EventAttachAttempt))

	diag, err := s.transport.Attach(ctx, s.pid)
	if err != nil {
		return nil, nil, err
	}
	s.diagMu.Lock()
	s.diag = diag
	s.diagMu.Unlock()

	stream, err := diag.StartStream(ctx, s.providers)
	if err != nil {
		s.closeDiagnostic()
		return nil, nil, err
	}
	source, err := s.newSource(stream)
	if err != nil {
		_ = stream.Close()
		s.closeDiagnostic()
		return nil, nil, fmt.Errorf("open event source: %w", err)
	}
	return stream, source, nil
}

// runStream pulls events until the source gives up. A fault stops the
// external session but never escapes the goroutine.
func (s *Session) runStream(stream io.ReadCloser, source domain.EventSource) (result domain.SessionResult) {
	defer func() {
		_ = stream.Close()
	}()
	defer func() {
		if r := recover(); r != nil {
			result = s.streamFault(fmt.Errorf("%w: panic: %v", domain.ErrStreamFault, r))
		}
	}()

	err := source.ForEach(s.dispatch)
	if s.stopRequested() {
		return domain.SessionResult{Reason: domain.StopRequested}
	}
	if err != nil {
		return s.streamFault(fmt.Errorf("%w: %w", domain.ErrStreamFault, err))
	}
	s.logger.Info("event stream ended")
	return domain.SessionResult{Reason: domain.StreamEnded}
}

func (s *Session) streamFault(err error) domain.SessionResult {
	s.closeDiagnostic()
	s.logger.Error("error while processing events",
		telemetry.EventField(telemetry.EventStreamFault),
		zap.Error(err),
	)
	return domain.SessionResult{Reason: domain.StreamFaulted, Err: err}
}

func (s *Session) awaitStop(ctx context.Context) domain.SessionResult {
	select {
	case <-s.stopCh:
	case <-ctx.Done():
		s.Stop()
	}
	s.closeDiagnostic()
	s.logger.Debug("stop signal observed")
	return domain.SessionResult{Reason: domain.StopRequested}
}

func (s *Session) stopRequested() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// closeDiagnostic stops the external session at most once, from whichever
// goroutine gets here first.
func (s *Session) closeDiagnostic() {
	s.closeOnce.Do(func() {
		s.diagMu.Lock()
		diag := s.diag
		s.diagMu.Unlock()
		if diag == nil {
			return
		}
		if err := diag.Stop(); err != nil {
			s.logger.Warn("diagnostic session stop failed", zap.Error(err))
		}
	})
}
