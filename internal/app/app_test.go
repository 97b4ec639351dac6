package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tracetap/internal/domain"
	"tracetap/internal/infra/config"
)

const pipeStream = `{"provider":"System.Runtime","name":"EventCounters","timestamp":"2024-05-01T10:00:00Z","payload":{"Payload":{"Name":"cpu-usage","DisplayName":"CPU Usage","DisplayUnits":"%","IntervalSec":1.0,"CounterType":"Mean","Mean":12.5}}}
{"provider":"System.Runtime","name":"EventCounters","timestamp":"2024-05-01T10:00:01Z","payload":{"Payload":{"Name":"exception-count","DisplayName":"Exception Count","DisplayUnits":"","IntervalSec":1.0,"CounterType":"Sum","Increment":3}}}
{"provider":"Microsoft.AspNetCore.Hosting","name":"RequestStart","timestamp":"2024-05-01T10:00:02Z","payload":{"path":"/health"}}
`

func writePipeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func pipeConfig(path string) config.Config {
	cfg := config.Default()
	cfg.Target.PipeFile = path
	cfg.Target.System = "checkout"
	cfg.AttachTimeout = time.Second
	cfg.StopTimeout = time.Second
	return cfg
}

func TestMonitorPipeEndToEnd(t *testing.T) {
	cfg := pipeConfig(writePipeFile(t, pipeStream))
	var out bytes.Buffer

	result, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, result.Reason)
	assert.NoError(t, ResultError(result))

	assert.Equal(t, "CPU Usage: 12.5 %\nException Count: 3\n", out.String())
}

func TestMonitorExportsCounters(t *testing.T) {
	cfg := pipeConfig(writePipeFile(t, pipeStream))
	cfg.Console.Enabled = false
	cfg.Observability.MetricsEnabled = true
	cfg.Observability.ListenAddress = "127.0.0.1:0"
	registry := prometheus.NewRegistry()
	var out bytes.Buffer

	result, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: &out, Registry: registry})
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, result.Reason)
	assert.Empty(t, out.String())

	count, err := testutil.GatherAndCount(registry, "tracetap_counter_value")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMonitorWithBroadcast(t *testing.T) {
	cfg := pipeConfig(writePipeFile(t, pipeStream))
	cfg.Broadcast.ListenAddress = "127.0.0.1:0"
	var out bytes.Buffer

	result, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, result.Reason)
	assert.Contains(t, out.String(), "Exception Count: 3")
}

func TestMonitorThroughDecoderCommand(t *testing.T) {
	cfg := pipeConfig(writePipeFile(t, pipeStream))
	cfg.DecoderCommand = "cat"
	var out bytes.Buffer

	result, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, result.Reason)
	assert.Contains(t, out.String(), "CPU Usage: 12.5 %")
}

func TestMonitorReportsStreamFault(t *testing.T) {
	cfg := pipeConfig(writePipeFile(t, pipeStream+"not json\n"))
	var out bytes.Buffer

	result, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: &out})
	require.NoError(t, err)
	assert.Equal(t, domain.StreamFaulted, result.Reason)
	assert.Error(t, ResultError(result))
	assert.Contains(t, out.String(), "Exception Count: 3")
}

func TestMonitorAttachTimeout(t *testing.T) {
	cfg := pipeConfig(filepath.Join(t.TempDir(), "never.jsonl"))
	cfg.AttachTimeout = 50 * time.Millisecond

	_, err := New(zaptest.NewLogger(t)).Monitor(context.Background(), cfg, MonitorOptions{Out: io.Discard})
	require.Error(t, err)
	assert.True(t, domain.IsAttachError(err))
	assert.ErrorIs(t, err, domain.ErrNoDiagnosticEndpoint)
}

func TestMonitorRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	_, err := New(nil).Monitor(context.Background(), cfg, MonitorOptions{Out: io.Discard})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

type blockingTransport struct{}

func (blockingTransport) Attach(ctx context.Context, _ int) (domain.DiagnosticSession, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAttachTimeoutBoundsAttach(t *testing.T) {
	transport := withAttachTimeout(blockingTransport{}, 20*time.Millisecond)
	start := time.Now()
	_, err := transport.Attach(context.Background(), 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, domain.Transport(blockingTransport{}), withAttachTimeout(blockingTransport{}, 0))
}

func TestResultError(t *testing.T) {
	assert.NoError(t, ResultError(domain.SessionResult{Reason: domain.StopRequested}))
	err := ResultError(domain.SessionResult{Reason: domain.StreamFaulted, Err: io.ErrUnexpectedEOF})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
