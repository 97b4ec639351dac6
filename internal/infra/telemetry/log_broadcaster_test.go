package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogBroadcasterForwardsAboveLevel(t *testing.T) {
	broadcaster := NewLogBroadcaster(zapcore.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := broadcaster.Subscribe(ctx)

	logger := broadcaster.Tee(zap.NewNop()).Named("tracing").With(SessionIDField("abc"))
	logger.Info("ignored")
	logger.Warn("decode failed", CounterField("cpu-usage"))

	select {
	case entry := <-entries:
		assert.Equal(t, "tracing", entry.Logger)
		assert.Equal(t, "warn", entry.Level)
		assert.Equal(t, "decode failed", entry.Message)
		assert.Equal(t, "abc", entry.Fields[FieldSessionID])
		assert.Equal(t, "cpu-usage", entry.Fields[FieldCounter])
	case <-time.After(time.Second):
		t.Fatal("no entry forwarded")
	}

	select {
	case entry := <-entries:
		t.Fatalf("unexpected entry %+v", entry)
	default:
	}
}

func TestLogBroadcasterClosesOnCancel(t *testing.T) {
	broadcaster := NewLogBroadcaster(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	entries := broadcaster.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-entries:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after the subscriber left must not panic.
	broadcaster.Tee(zap.NewNop()).Error("late")
}
