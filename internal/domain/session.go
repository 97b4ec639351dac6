package domain

// SessionState tracks where a tracing session is in its lifecycle.
type SessionState int32

const (
	SessionCreated SessionState = iota
	SessionRunning
	SessionStopping
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionRunning:
		return "running"
	case SessionStopping:
		return "stopping"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason explains why a session ended.
type StopReason string

const (
	// StopRequested means Stop was called or the caller's context ended.
	StopRequested StopReason = "requested"
	// StreamEnded means the event stream finished on its own.
	StreamEnded StopReason = "stream_ended"
	// StreamFaulted means the event source failed while decoding.
	StreamFaulted StopReason = "stream_faulted"
)

// SessionResult is the outcome of a session that attached successfully.
type SessionResult struct {
	Reason StopReason
	Err    error
}

// Graceful reports whether the session ended without a stream fault.
func (r SessionResult) Graceful() bool {
	return r.Reason != StreamFaulted
}
