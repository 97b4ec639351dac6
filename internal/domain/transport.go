package domain

import (
	"context"
	"io"
)

// Transport connects to a running process's diagnostic endpoint.
type Transport interface {
	Attach(ctx context.Context, pid int) (DiagnosticSession, error)
}

// DiagnosticSession is one attached diagnostic connection. Stop must be
// idempotent and safe to call from any goroutine.
type DiagnosticSession interface {
	StartStream(ctx context.Context, specs []ProviderSpec) (io.ReadCloser, error)
	Stop() error
}

// EventSource turns a raw stream into decoded events and calls handler
// once per event, in stream order. ForEach returns when the stream ends.
type EventSource interface {
	ForEach(handler func(Event)) error
}

// SourceFactory builds an EventSource over an opened stream.
type SourceFactory func(stream io.Reader) (EventSource, error)
