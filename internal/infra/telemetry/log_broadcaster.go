package telemetry

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tracetap/internal/domain"
)

const DefaultLogBufferSize = 128

// LogBroadcaster is a zap core that copies entries at or above minLevel to
// subscribers. Slow subscribers miss entries rather than block logging.
type LogBroadcaster struct {
	minLevel zapcore.Level
	mu       sync.RWMutex
	subs     map[chan domain.LogEntry]struct{}
}

func NewLogBroadcaster(minLevel zapcore.Level) *LogBroadcaster {
	return &LogBroadcaster{
		minLevel: minLevel,
		subs:     make(map[chan domain.LogEntry]struct{}),
	}
}

func (b *LogBroadcaster) Core() zapcore.Core {
	return &logBroadcasterCore{broadcaster: b}
}

// Tee returns logger writing to both its own core and the broadcaster.
func (b *LogBroadcaster) Tee(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, b.Core())
	}))
}

// Subscribe returns a channel of entries that is closed when ctx ends.
func (b *LogBroadcaster) Subscribe(ctx context.Context) <-chan domain.LogEntry {
	ch := make(chan domain.LogEntry, DefaultLogBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *LogBroadcaster) publish(entry domain.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

type logBroadcasterCore struct {
	broadcaster *LogBroadcaster
	fields      []zapcore.Field
}

func (c *logBroadcasterCore) Enabled(level zapcore.Level) bool {
	return level >= c.broadcaster.minLevel
}

func (c *logBroadcasterCore) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &logBroadcasterCore{broadcaster: c.broadcaster, fields: combined}
}

func (c *logBroadcasterCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *logBroadcasterCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(encoder)
	}
	for _, field := range fields {
		field.AddTo(encoder)
	}

	logged := domain.LogEntry{
		Logger:    entry.LoggerName,
		Level:     entry.Level.String(),
		Timestamp: entry.Time.UTC(),
		Message:   entry.Message,
	}
	if logged.Logger == "" {
		logged.Logger = "tracetap"
	}
	if len(encoder.Fields) > 0 {
		logged.Fields = encoder.Fields
	}
	c.broadcaster.publish(logged)
	return nil
}

func (c *logBroadcasterCore) Sync() error {
	return nil
}

var _ zapcore.Core = (*logBroadcasterCore)(nil)
