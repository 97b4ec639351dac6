package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTrackerReport(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewHealthTracker()
	tracker.now = func() time.Time { return now }

	assert.Equal(t, HealthStatusOK, tracker.Report().Status)

	stream := tracker.Register("event-stream", 3*time.Second)
	assert.Same(t, stream, tracker.Register("event-stream", time.Hour))
	assert.Equal(t, HealthStatusStarting, tracker.Report().Status)

	stream.Beat()
	report := tracker.Report()
	assert.Equal(t, HealthStatusOK, report.Status)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, now, report.Checks[0].LastBeat)

	now = now.Add(4 * time.Second)
	assert.Equal(t, HealthStatusStale, tracker.Report().Status)

	stream.Beat()
	assert.Equal(t, HealthStatusOK, tracker.Report().Status)
}

func TestHeartbeatNilSafe(t *testing.T) {
	var beat *Heartbeat
	assert.NotPanics(t, beat.Beat)
}
