package telemetry

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldSessionID  = "sessionID"
	FieldPID        = "pid"
	FieldProvider   = "provider"
	FieldEventName  = "eventName"
	FieldCounter    = "counter"
	FieldReason     = "reason"
	FieldObserver   = "observer"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
)

const (
	EventAttachAttempt  = "attach_attempt"
	EventAttachSuccess  = "attach_success"
	EventAttachFailure  = "attach_failure"
	EventDecodeFailure  = "decode_failure"
	EventObserverFault  = "observer_fault"
	EventStreamFault    = "stream_fault"
	EventSessionStopped = "session_stopped"
)

const (
	LogSourceCore = "core"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func SessionIDField(id string) zap.Field {
	return zap.String(FieldSessionID, id)
}

func PIDField(pid int) zap.Field {
	return zap.Int(FieldPID, pid)
}

func ProviderField(name string) zap.Field {
	return zap.String(FieldProvider, name)
}

func EventNameField(name string) zap.Field {
	return zap.String(FieldEventName, name)
}

func CounterField(name string) zap.Field {
	return zap.String(FieldCounter, name)
}

func ReasonField(reason string) zap.Field {
	return zap.String(FieldReason, reason)
}

func ObserverField(kind string, index int) zap.Field {
	return zap.String(FieldObserver, kind+"#"+strconv.Itoa(index))
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
