package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tracetap/internal/domain"
	"tracetap/internal/infra/process"
)

const defaultStopTimeout = 5 * time.Second

// Options configures a Transport. Zero values select defaults.
type Options struct {
	TempDir          string
	CircularBufferMB uint32
	RequestRundown   bool
	StopTimeout      time.Duration
	Logger           *zap.Logger
	// ProcessExists overrides the liveness check, mainly for tests.
	ProcessExists func(ctx context.Context, pid int) (bool, error)
}

// Transport attaches to live processes through their diagnostic socket.
type Transport struct {
	dir            string
	bufferMB       uint32
	requestRundown bool
	stopTimeout    time.Duration
	logger         *zap.Logger
	exists         func(ctx context.Context, pid int) (bool, error)
}

func NewTransport(opts Options) *Transport {
	t := &Transport{
		dir:            opts.TempDir,
		bufferMB:       opts.CircularBufferMB,
		requestRundown: opts.RequestRundown,
		stopTimeout:    opts.StopTimeout,
		logger:         opts.Logger,
		exists:         opts.ProcessExists,
	}
	if t.dir == "" {
		t.dir = TempDir()
	}
	if t.bufferMB == 0 {
		t.bufferMB = domain.DefaultCircularBufferMB
	}
	if t.stopTimeout <= 0 {
		t.stopTimeout = defaultStopTimeout
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.exists == nil {
		t.exists = process.Exists
	}
	t.logger = t.logger.Named("ipc")
	return t
}

// Attach checks that pid is alive and exposes a diagnostic socket. No
// session is requested until StartStream.
func (t *Transport) Attach(ctx context.Context, pid int) (domain.DiagnosticSession, error) {
	if pid <= 0 {
		return nil, domain.E(domain.CodeInvalidArgument, "ipc.Attach", fmt.Sprintf("invalid pid %d", pid), nil)
	}
	alive, err := t.exists(ctx, pid)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "ipc.Attach", err)
	}
	if !alive {
		return nil, domain.E(domain.CodeNotFound, "ipc.Attach", fmt.Sprintf("no process with pid %d", pid), domain.ErrProcessNotFound)
	}
	path, err := FindSocket(t.dir, pid)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("diagnostic socket located", zap.Int("pid", pid), zap.String("socket", path))
	return &Diagnostic{transport: t, socketPath: path}, nil
}

// Diagnostic is one EventPipe session on a target process.
type Diagnostic struct {
	transport  *Transport
	socketPath string

	// mu guards the fields below and is never held across socket I/O.
	mu        sync.Mutex
	pending   net.Conn
	conn      net.Conn
	sessionID uint64
	starting  bool
	started   bool
	stopped   bool

	stopOnce sync.Once
	stopErr  error
}

// SessionID is the runtime-assigned session identifier, zero before
// StartStream succeeds.
func (d *Diagnostic) SessionID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// StartStream requests a session for specs. On success the returned reader
// is the raw NetTrace byte stream of the same connection. A Stop issued
// while the request is in flight aborts it with CodeCanceled.
func (d *Diagnostic) StartStream(ctx context.Context, specs []domain.ProviderSpec) (io.ReadCloser, error) {
	const op = "ipc.StartStream"
	d.mu.Lock()
	switch {
	case d.started, d.starting:
		d.mu.Unlock()
		return nil, domain.E(domain.CodeFailedPrecond, op, "stream already started", nil)
	case d.stopped:
		d.mu.Unlock()
		return nil, domain.E(domain.CodeCanceled, op, "session stopped", nil)
	}
	d.starting = true
	d.mu.Unlock()

	conn, err := dial(ctx, d.socketPath)
	if err != nil {
		d.finishStart(nil, 0)
		return nil, err
	}
	d.mu.Lock()
	if d.stopped {
		d.starting = false
		d.mu.Unlock()
		_ = conn.Close()
		return nil, domain.E(domain.CodeCanceled, op, "stopped during start", nil)
	}
	d.pending = conn
	d.mu.Unlock()

	id, err := d.requestSession(ctx, conn, specs)
	if err != nil {
		_ = conn.Close()
		if d.finishStart(nil, 0) {
			return nil, domain.E(domain.CodeCanceled, op, "stopped during start", err)
		}
		return nil, err
	}
	if d.finishStart(conn, id) {
		_ = conn.Close()
		if stopErr := d.sendStop(id); stopErr != nil {
			d.transport.logger.Warn("stop after aborted start failed", zap.Uint64("eventpipeSession", id), zap.Error(stopErr))
		}
		return nil, domain.E(domain.CodeCanceled, op, "stopped during start", nil)
	}

	d.transport.logger.Info("eventpipe session started",
		zap.Uint64("eventpipeSession", id),
		zap.Int("providers", len(specs)),
	)
	return conn, nil
}

func (d *Diagnostic) requestSession(ctx context.Context, conn net.Conn, specs []domain.ProviderSpec) (uint64, error) {
	const op = "ipc.StartStream"
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	payload := encodeCollectTracing(d.transport.bufferMB, d.transport.requestRundown, specs)
	if err := writeMessage(conn, commandSetEventPipe, eventPipeCollectTracing2, payload); err != nil {
		return 0, domain.Wrap(domain.CodeUnavailable, op, fmt.Errorf("send collect request: %w", err))
	}
	id, err := readResponse(conn, op)
	if err != nil {
		return 0, err
	}
	_ = conn.SetDeadline(time.Time{})
	return id, nil
}

// finishStart records the outcome of a session request and reports whether
// Stop ran while it was in flight. conn is nil on failure.
func (d *Diagnostic) finishStart(conn net.Conn, id uint64) (stopped bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starting = false
	d.pending = nil
	if d.stopped || conn == nil {
		return d.stopped
	}
	d.conn = conn
	d.sessionID = id
	d.started = true
	return false
}

// Stop ends the runtime session and closes the stream. Repeated calls
// return the first result.
func (d *Diagnostic) Stop() error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		pending, conn, id, started := d.pending, d.conn, d.sessionID, d.started
		d.mu.Unlock()
		if pending != nil {
			_ = pending.Close()
		}
		if !started {
			return
		}
		d.stopErr = d.sendStop(id)
		if err := conn.Close(); err != nil && d.stopErr == nil && !errors.Is(err, net.ErrClosed) {
			d.stopErr = err
		}
	})
	return d.stopErr
}

func (d *Diagnostic) sendStop(id uint64) error {
	const op = "ipc.Stop"
	ctx, cancel := context.WithTimeout(context.Background(), d.transport.stopTimeout)
	defer cancel()

	conn, err := dial(ctx, d.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := writeMessage(conn, commandSetEventPipe, eventPipeStopTracing, encodeStopTracing(id)); err != nil {
		return domain.Wrap(domain.CodeUnavailable, op, fmt.Errorf("send stop request: %w", err))
	}
	_, err = readResponse(conn, op)
	return err
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	const op = "ipc.Dial"
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err == nil {
		return conn, nil
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, domain.E(domain.CodePermissionDenied, op, err.Error(), domain.ErrAttachDenied)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
		return nil, domain.E(domain.CodeUnavailable, op, err.Error(), domain.ErrNoDiagnosticEndpoint)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, domain.E(domain.CodeDeadlineExceeded, op, "", err)
	case errors.Is(err, context.Canceled):
		return nil, domain.E(domain.CodeCanceled, op, "", err)
	default:
		return nil, domain.E(domain.CodeUnavailable, op, "", err)
	}
}
