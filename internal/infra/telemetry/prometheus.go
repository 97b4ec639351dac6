package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tracetap/internal/domain"
)

const (
	eventKindCounter = "counter"
	eventKindRaw     = "raw"
	outcomeAttach    = "attach_failed"
)

type PrometheusMetrics struct {
	events         *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec
	observerFaults *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	attachFailures *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracetap_events_total",
				Help: "Total number of decoded diagnostic events received",
			},
			[]string{"kind"},
		),
		decodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracetap_decode_failures_total",
				Help: "Total number of counter payloads dropped during decoding",
			},
			[]string{"reason"},
		),
		observerFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracetap_observer_faults_total",
				Help: "Total number of observer invocations that panicked",
			},
			[]string{"kind"},
		),
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracetap_sessions_total",
				Help: "Total number of tracing sessions by outcome",
			},
			[]string{"outcome"},
		),
		attachFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracetap_attach_failures_total",
				Help: "Total number of failed attach attempts by error code",
			},
			[]string{"code"},
		),
	}
}

func (p *PrometheusMetrics) ObserveEvent(counter bool) {
	kind := eventKindRaw
	if counter {
		kind = eventKindCounter
	}
	p.events.WithLabelValues(kind).Inc()
}

func (p *PrometheusMetrics) ObserveDecodeFailure(reason domain.DecodeFailureReason) {
	p.decodeFailures.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusMetrics) ObserveObserverFault(kind domain.ObserverKind) {
	p.observerFaults.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusMetrics) ObserveSessionEnd(reason domain.StopReason) {
	p.sessions.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusMetrics) ObserveAttachFailure(code domain.ErrorCode) {
	if code == "" {
		code = domain.CodeInternal
	}
	p.sessions.WithLabelValues(outcomeAttach).Inc()
	p.attachFailures.WithLabelValues(string(code)).Inc()
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
