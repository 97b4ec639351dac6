// Package pipe reads pre-decoded events from a named pipe or file instead
// of attaching to a live process.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"tracetap/internal/domain"
)

// Transport attaches to whatever writes path. The pid given to Attach is
// only used for logging.
type Transport struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger
}

func NewTransport(path string, timeout time.Duration, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		path:    path,
		timeout: timeout,
		logger:  logger.Named("pipe"),
	}
}

// Attach waits for the pipe file to appear, bounded by ctx and the
// transport timeout.
func (t *Transport) Attach(ctx context.Context, pid int) (domain.DiagnosticSession, error) {
	const op = "pipe.Attach"
	if t.path == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "pipe path is required", domain.ErrInvalidConfig)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if err := waitForFile(ctx, t.path); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, domain.E(domain.CodeUnavailable, op, fmt.Sprintf("pipe %s did not appear", t.path), domain.ErrNoDiagnosticEndpoint)
		case errors.Is(err, context.Canceled):
			return nil, domain.E(domain.CodeCanceled, op, "", err)
		case errors.Is(err, fs.ErrPermission):
			return nil, domain.E(domain.CodePermissionDenied, op, err.Error(), domain.ErrAttachDenied)
		default:
			return nil, domain.Wrap(domain.CodeUnavailable, op, err)
		}
	}
	t.logger.Debug("pipe ready", zap.String("path", t.path), zap.Int("pid", pid))
	return &Session{path: t.path}, nil
}

// Session owns the opened pipe. Stop closes it once.
type Session struct {
	path string

	mu       sync.Mutex
	file     *os.File
	stopped  bool
	stopOnce sync.Once
	stopErr  error
}

func (s *Session) StartStream(_ context.Context, _ []domain.ProviderSpec) (io.ReadCloser, error) {
	const op = "pipe.StartStream"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, domain.E(domain.CodeFailedPrecond, op, "session stopped", nil)
	}
	if s.file != nil {
		return nil, domain.E(domain.CodeFailedPrecond, op, "stream already started", nil)
	}
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, domain.E(domain.CodePermissionDenied, op, err.Error(), domain.ErrAttachDenied)
		}
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	s.file = file
	return file, nil
}

func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = true
		if s.file == nil {
			return
		}
		if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.stopErr = err
		}
	})
	return s.stopErr
}

func waitForFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	// The file may have been created between the first stat and Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			if err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				return nil
			}
		}
	}
}
