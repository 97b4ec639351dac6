package consumers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tracetap/internal/domain"
)

// Exporter republishes the latest value of every counter as a gauge.
type Exporter struct {
	system string
	values *prometheus.GaugeVec
}

func NewExporter(registerer prometheus.Registerer, system string) *Exporter {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &Exporter{
		system: system,
		values: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracetap_counter_value",
				Help: "Latest value reported by a runtime counter",
			},
			[]string{"system", "counter", "units", "kind"},
		),
	}
}

// ObserveCounter is a domain.CounterObserver.
func (e *Exporter) ObserveCounter(m domain.CounterMeasurement) {
	e.values.WithLabelValues(e.system, m.Name, m.DisplayUnits, m.Kind.String()).Set(m.Value)
}
