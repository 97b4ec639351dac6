package telemetry

import (
	"tracetap/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveEvent(_ bool) {}

func (n *NoopMetrics) ObserveDecodeFailure(_ domain.DecodeFailureReason) {}

func (n *NoopMetrics) ObserveObserverFault(_ domain.ObserverKind) {}

func (n *NoopMetrics) ObserveSessionEnd(_ domain.StopReason) {}

func (n *NoopMetrics) ObserveAttachFailure(_ domain.ErrorCode) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
