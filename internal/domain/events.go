package domain

import (
	"fmt"
	"time"
)

// CounterEventName is the event name the runtime uses for counter payloads.
const CounterEventName = "EventCounters"

// CounterKind distinguishes running sums from periodic means.
type CounterKind int

const (
	CounterSum CounterKind = iota + 1
	CounterMean
)

func (k CounterKind) String() string {
	switch k {
	case CounterSum:
		return "Sum"
	case CounterMean:
		return "Mean"
	default:
		return "Unknown"
	}
}

func (k CounterKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CounterKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Sum":
		*k = CounterSum
	case "Mean":
		*k = CounterMean
	default:
		return fmt.Errorf("unknown counter kind %q", text)
	}
	return nil
}

// CounterMeasurement is a decoded counter sample.
type CounterMeasurement struct {
	Name            string      `json:"name"`
	DisplayName     string      `json:"displayName"`
	Kind            CounterKind `json:"kind"`
	Value           float64     `json:"value"`
	DisplayUnits    string      `json:"displayUnits"`
	IntervalSeconds int         `json:"intervalSeconds"`
}

// Event is a decoded diagnostic event as delivered by an EventSource.
// Payload is left uninterpreted unless the event is a counter event.
type Event struct {
	ProviderName string         `json:"provider"`
	EventName    string         `json:"name"`
	Timestamp    time.Time      `json:"timestamp"`
	ProcessID    int            `json:"pid,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// IsCounterEvent reports whether the event carries a counter payload.
func (e Event) IsCounterEvent() bool {
	return e.EventName == CounterEventName
}

// CounterObserver receives every successfully decoded counter.
type CounterObserver func(CounterMeasurement)

// EventObserver receives every non-counter event.
type EventObserver func(Event)
