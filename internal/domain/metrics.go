package domain

// DecodeFailureReason labels why a counter payload was dropped.
type DecodeFailureReason string

const (
	DecodeFailureMalformed   DecodeFailureReason = "malformed_payload"
	DecodeFailureCounterType DecodeFailureReason = "invalid_counter_type"
)

// ObserverKind labels which registry an observer belongs to.
type ObserverKind string

const (
	ObserverCounter ObserverKind = "counter"
	ObserverEvent   ObserverKind = "event"
)

// Metrics records tap-internal telemetry.
type Metrics interface {
	ObserveEvent(counter bool)
	ObserveDecodeFailure(reason DecodeFailureReason)
	ObserveObserverFault(kind ObserverKind)
	ObserveSessionEnd(reason StopReason)
	ObserveAttachFailure(code ErrorCode)
}
