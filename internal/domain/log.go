package domain

import "time"

// LogEntry is a structured log record forwarded to live subscribers.
type LogEntry struct {
	Logger    string         `json:"logger"`
	Level     string         `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}
