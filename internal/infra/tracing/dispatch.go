package tracing

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tracetap/internal/domain"
	"tracetap/internal/infra/counters"
	"tracetap/internal/infra/telemetry"
)

// dispatch handles one decoded event. It runs on the stream goroutine only,
// so events reach observers strictly in arrival order.
func (s *Session) dispatch(event domain.Event) {
	if !event.IsCounterEvent() {
		s.metrics.ObserveEvent(false)
		for i, observer := range s.observers.eventObservers() {
			s.invokeEvent(i, observer, event)
		}
		return
	}

	s.metrics.ObserveEvent(true)
	measurement, err := decodeCounter(event)
	if err != nil {
		reason := domain.DecodeFailureMalformed
		var decodeErr *counters.DecodeError
		if errors.As(err, &decodeErr) {
			reason = decodeErr.Reason()
		}
		s.metrics.ObserveDecodeFailure(reason)
		s.logger.Error("counter payload dropped",
			telemetry.EventField(telemetry.EventDecodeFailure),
			telemetry.ProviderField(event.ProviderName),
			telemetry.EventNameField(event.EventName),
			telemetry.ReasonField(string(reason)),
			zap.Error(err),
		)
		return
	}

	for i, observer := range s.observers.counterObservers() {
		s.invokeCounter(i, observer, measurement)
	}
}

func decodeCounter(event domain.Event) (domain.CounterMeasurement, error) {
	fields, err := counters.ExtractPayload(event)
	if err != nil {
		return domain.CounterMeasurement{}, err
	}
	return counters.Decode(fields)
}

func (s *Session) invokeCounter(index int, observer domain.CounterObserver, m domain.CounterMeasurement) {
	defer s.recoverObserver(domain.ObserverCounter, index, telemetry.CounterField(m.Name))
	observer(m)
}

func (s *Session) invokeEvent(index int, observer domain.EventObserver, event domain.Event) {
	defer s.recoverObserver(domain.ObserverEvent, index, telemetry.EventNameField(event.EventName))
	observer(event)
}

func (s *Session) recoverObserver(kind domain.ObserverKind, index int, subject zap.Field) {
	r := recover()
	if r == nil {
		return
	}
	s.metrics.ObserveObserverFault(kind)
	s.logger.Error("observer failed",
		telemetry.EventField(telemetry.EventObserverFault),
		telemetry.ObserverField(string(kind), index),
		subject,
		zap.Error(fmt.Errorf("panic: %v", r)),
	)
}
