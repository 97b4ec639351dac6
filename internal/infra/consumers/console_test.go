package consumers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"tracetap/internal/domain"
)

func TestConsoleCounterLine(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf, false)

	console.ObserveCounter(domain.CounterMeasurement{
		Name:         "cpu-usage",
		DisplayName:  "CPU Usage",
		Kind:         domain.CounterMean,
		Value:        12.5,
		DisplayUnits: "%",
	})
	console.ObserveCounter(domain.CounterMeasurement{
		DisplayName: "Exception Count",
		Kind:        domain.CounterSum,
		Value:       3,
	})
	console.ObserveEvent(domain.Event{ProviderName: "Microsoft.AspNetCore.Hosting", EventName: "RequestStart"})

	assert.Equal(t, "CPU Usage: 12.5 %\nException Count: 3\n[Microsoft.AspNetCore.Hosting] RequestStart\n", buf.String())
}

func TestConsoleColorizes(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, true).ObserveCounter(domain.CounterMeasurement{DisplayName: "GC Heap Size", Value: 1, DisplayUnits: "MB"})
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "GC Heap Size")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0", FormatValue(0))
	assert.Equal(t, "1024", FormatValue(1024))
	assert.Equal(t, "0.25", FormatValue(0.25))
}
