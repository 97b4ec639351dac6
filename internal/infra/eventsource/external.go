package eventsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"tracetap/internal/domain"
	"tracetap/internal/infra/process"
)

// External pipes the raw trace through a decoder command that writes JSON
// lines on stdout.
type External struct {
	argv   []string
	stream io.Reader
	logger *zap.Logger
}

// ParseCommand splits a decoder command line with shell quoting rules.
func ParseCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, "eventsource.ParseCommand", fmt.Sprintf("parse decoder command: %v", err), domain.ErrInvalidConfig)
	}
	if len(argv) == 0 {
		return nil, domain.E(domain.CodeInvalidArgument, "eventsource.ParseCommand", "decoder command is empty", domain.ErrInvalidConfig)
	}
	return argv, nil
}

// ExternalFactory returns a SourceFactory running command for every stream.
func ExternalFactory(command string, logger *zap.Logger) (domain.SourceFactory, error) {
	argv, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("decoder").With(zap.String("command", argv[0]))
	return func(stream io.Reader) (domain.EventSource, error) {
		if stream == nil {
			return nil, errors.New("nil stream")
		}
		return &External{argv: argv, stream: stream, logger: logger}, nil
	}, nil
}

// ForEach runs the decoder until its stdout closes. A non-zero exit is a
// fault even when every line decoded.
func (e *External) ForEach(handler func(domain.Event)) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	child := process.Setup(cmd)
	cmd.Cancel = func() error {
		child.Kill()
		return nil
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("decoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decoder stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("decoder stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}

	go func() {
		_, copyErr := io.Copy(stdin, e.stream)
		_ = stdin.Close()
		if copyErr != nil {
			e.logger.Debug("decoder input closed", zap.Error(copyErr))
		}
	}()
	var stderrDone sync.WaitGroup
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				e.logger.Warn("decoder stderr", zap.String("line", line))
			}
		}
	}()

	decodeErr := NewJSONLines(stdout).ForEach(handler)
	if decodeErr != nil {
		child.Kill()
		_, _ = io.Copy(io.Discard, stdout)
	}
	stderrDone.Wait()
	waitErr := child.Wait(ctx)

	if decodeErr != nil {
		return decodeErr
	}
	if waitErr != nil {
		return fmt.Errorf("decoder exited: %w", waitErr)
	}
	return nil
}
