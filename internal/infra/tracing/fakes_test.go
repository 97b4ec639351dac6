package tracing

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"tracetap/internal/domain"
)

type fakeStream struct {
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{closed: make(chan struct{})}
}

func (f *fakeStream) Read(_ []byte) (int, error) {
	<-f.closed
	return 0, io.EOF
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeDiagnostic struct {
	stream   *fakeStream
	startErr error
	stops    atomic.Int32

	mu    sync.Mutex
	specs []domain.ProviderSpec
}

func (d *fakeDiagnostic) StartStream(_ context.Context, specs []domain.ProviderSpec) (io.ReadCloser, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.mu.Lock()
	d.specs = specs
	d.mu.Unlock()
	return d.stream, nil
}

func (d *fakeDiagnostic) Stop() error {
	d.stops.Add(1)
	return d.stream.Close()
}

type fakeTransport struct {
	diag *fakeDiagnostic
	err  error
	pid  atomic.Int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{diag: &fakeDiagnostic{stream: newFakeStream()}}
}

func (t *fakeTransport) Attach(_ context.Context, pid int) (domain.DiagnosticSession, error) {
	t.pid.Store(int64(pid))
	if t.err != nil {
		return nil, t.err
	}
	return t.diag, nil
}

// scriptedSource replays events, then ends, fails, or blocks until the
// stream is closed by a stop.
type scriptedSource struct {
	events  []domain.Event
	err     error
	block   bool
	panics  bool
	stream  *fakeStream
	started chan struct{}
	// onEnd runs after the last event, just before ForEach returns.
	onEnd func()
}

func (s *scriptedSource) ForEach(handler func(domain.Event)) error {
	if s.started != nil {
		close(s.started)
	}
	for _, event := range s.events {
		handler(event)
	}
	if s.panics {
		panic("decoder exploded")
	}
	if s.onEnd != nil {
		s.onEnd()
	}
	if s.block {
		<-s.stream.closed
		return errors.New("stream closed")
	}
	return s.err
}

func sourceFactory(src *scriptedSource) domain.SourceFactory {
	return func(_ io.Reader) (domain.EventSource, error) {
		return src, nil
	}
}

type recordingMetrics struct {
	mu             sync.Mutex
	events         int
	counters       int
	decodeFailures []domain.DecodeFailureReason
	observerFaults []domain.ObserverKind
	ends           []domain.StopReason
	attachFailures []domain.ErrorCode
}

func (m *recordingMetrics) ObserveEvent(counter bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events++
	if counter {
		m.counters++
	}
}

func (m *recordingMetrics) ObserveDecodeFailure(reason domain.DecodeFailureReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeFailures = append(m.decodeFailures, reason)
}

func (m *recordingMetrics) ObserveObserverFault(kind domain.ObserverKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observerFaults = append(m.observerFaults, kind)
}

func (m *recordingMetrics) ObserveSessionEnd(reason domain.StopReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends = append(m.ends, reason)
}

func (m *recordingMetrics) ObserveAttachFailure(code domain.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachFailures = append(m.attachFailures, code)
}

func counterEvent(name, counterType string, value float64) domain.Event {
	fields := map[string]any{
		"Name":         name,
		"DisplayName":  name,
		"DisplayUnits": "MB",
		"IntervalSec":  "1",
		"CounterType":  counterType,
	}
	if counterType == "Mean" {
		fields["Mean"] = value
	} else {
		fields["Increment"] = value
	}
	return domain.Event{
		ProviderName: "System.Runtime",
		EventName:    domain.CounterEventName,
		Payload:      map[string]any{"Payload": fields},
	}
}

func malformedCounterEvent() domain.Event {
	return domain.Event{
		ProviderName: "System.Runtime",
		EventName:    domain.CounterEventName,
		Payload: map[string]any{"Payload": map[string]any{
			"Name":        "broken",
			"DisplayName": "Broken",
			"IntervalSec": "1",
			"CounterType": "Sum",
			"Increment":   1.0,
		}},
	}
}

func rawEvent(name string) domain.Event {
	return domain.Event{ProviderName: "Microsoft.AspNetCore.Hosting", EventName: name}
}
