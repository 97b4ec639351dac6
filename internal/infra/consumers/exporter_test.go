package consumers

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"tracetap/internal/domain"
)

func TestExporterKeepsLatestValue(t *testing.T) {
	exporter := NewExporter(prometheus.NewRegistry(), "checkout")

	exporter.ObserveCounter(domain.CounterMeasurement{Name: "gc-heap-size", Kind: domain.CounterMean, Value: 10, DisplayUnits: "MB"})
	exporter.ObserveCounter(domain.CounterMeasurement{Name: "gc-heap-size", Kind: domain.CounterMean, Value: 12, DisplayUnits: "MB"})
	exporter.ObserveCounter(domain.CounterMeasurement{Name: "exception-count", Kind: domain.CounterSum, Value: 2})

	heap := exporter.values.WithLabelValues("checkout", "gc-heap-size", "MB", "Mean")
	assert.Equal(t, 12.0, testutil.ToFloat64(heap))
	exceptions := exporter.values.WithLabelValues("checkout", "exception-count", "", "Sum")
	assert.Equal(t, 2.0, testutil.ToFloat64(exceptions))
	assert.Equal(t, 2, testutil.CollectAndCount(exporter.values))
}
