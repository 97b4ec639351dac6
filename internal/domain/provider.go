package domain

import (
	"fmt"
	"strings"
)

// EventLevel is the verbosity a provider is enabled at.
type EventLevel int

const (
	LevelLogAlways EventLevel = iota
	LevelCritical
	LevelError
	LevelWarning
	LevelInformational
	LevelVerbose
)

// DefaultKeywords enables every keyword bit of a provider.
const DefaultKeywords = ^uint64(0)

var levelNames = map[EventLevel]string{
	LevelLogAlways:     "LogAlways",
	LevelCritical:      "Critical",
	LevelError:         "Error",
	LevelWarning:       "Warning",
	LevelInformational: "Informational",
	LevelVerbose:       "Verbose",
}

func (l EventLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("EventLevel(%d)", int(l))
}

// ParseEventLevel accepts a level name (case-insensitive) or its numeric form.
func ParseEventLevel(value string) (EventLevel, error) {
	trimmed := strings.TrimSpace(value)
	for level, name := range levelNames {
		if strings.EqualFold(trimmed, name) || trimmed == fmt.Sprint(int(level)) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown event level %q", value)
}

func (l EventLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *EventLevel) UnmarshalText(text []byte) error {
	level, err := ParseEventLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ProviderArgument is one key/value argument passed to a provider.
type ProviderArgument struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ProviderSpec describes a named diagnostic source to enable. It is built
// once and treated as immutable afterwards.
type ProviderSpec struct {
	Name      string             `json:"name" yaml:"name"`
	Level     EventLevel         `json:"level" yaml:"level"`
	Keywords  uint64             `json:"keywords" yaml:"keywords"`
	Arguments []ProviderArgument `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Argument returns the value stored under key.
func (p ProviderSpec) Argument(key string) (string, bool) {
	for _, arg := range p.Arguments {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// FilterData renders the arguments in the key=value;key=value form the
// diagnostic server expects. Values holding a separator are quoted.
func (p ProviderSpec) FilterData() string {
	if len(p.Arguments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.Arguments))
	for _, arg := range p.Arguments {
		value := arg.Value
		if strings.ContainsAny(value, ";=") {
			value = `"` + value + `"`
		}
		parts = append(parts, arg.Key+"="+value)
	}
	return strings.Join(parts, ";")
}

// CloneProviders copies a provider list so callers cannot mutate a session's view.
func CloneProviders(specs []ProviderSpec) []ProviderSpec {
	if specs == nil {
		return nil
	}
	out := make([]ProviderSpec, len(specs))
	for i, spec := range specs {
		out[i] = spec
		if spec.Arguments != nil {
			out[i].Arguments = append([]ProviderArgument(nil), spec.Arguments...)
		}
	}
	return out
}
