package counters

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tracetap/internal/domain"
)

const (
	KeyName         = "Name"
	KeyDisplayName  = "DisplayName"
	KeyDisplayUnits = "DisplayUnits"
	KeyIntervalSec  = "IntervalSec"
	KeyCounterType  = "CounterType"
	KeyIncrement    = "Increment"
	KeyMean         = "Mean"

	// KeyPayload holds the nested counter fields inside a counter event.
	KeyPayload = "Payload"
)

var (
	ErrMalformedPayload   = errors.New("malformed counter payload")
	ErrInvalidCounterType = errors.New("invalid counter type")
)

// DecodeError describes why a counter payload was rejected.
type DecodeError struct {
	Kind  error
	Key   string
	Value any
	Err   error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason maps the error onto the metrics label used for dropped counters.
func (e *DecodeError) Reason() domain.DecodeFailureReason {
	if errors.Is(e.Kind, ErrInvalidCounterType) {
		return domain.DecodeFailureCounterType
	}
	return domain.DecodeFailureMalformed
}

func malformed(key string, value any, err error) *DecodeError {
	return &DecodeError{Kind: ErrMalformedPayload, Key: key, Value: value, Err: err}
}

// Decode converts the untyped field map of a counter event into a
// measurement. Only the value field selected by CounterType is read.
func Decode(fields map[string]any) (domain.CounterMeasurement, error) {
	if fields == nil {
		return domain.CounterMeasurement{}, malformed("", nil, errors.New("payload is empty"))
	}

	var (
		m   domain.CounterMeasurement
		err error
	)
	if m.Name, err = stringField(fields, KeyName); err != nil {
		return domain.CounterMeasurement{}, err
	}
	if m.DisplayName, err = stringField(fields, KeyDisplayName); err != nil {
		return domain.CounterMeasurement{}, err
	}
	if m.DisplayUnits, err = stringField(fields, KeyDisplayUnits); err != nil {
		return domain.CounterMeasurement{}, err
	}

	interval, err := floatField(fields, KeyIntervalSec)
	if err != nil {
		return domain.CounterMeasurement{}, err
	}
	rounded := math.RoundToEven(interval)
	if rounded > math.MaxInt32 || rounded < math.MinInt32 {
		return domain.CounterMeasurement{}, malformed(KeyIntervalSec, fields[KeyIntervalSec], errors.New("interval out of range"))
	}
	m.IntervalSeconds = int(rounded)

	rawType, ok := fields[KeyCounterType]
	if !ok {
		return domain.CounterMeasurement{}, &DecodeError{Kind: ErrInvalidCounterType, Key: KeyCounterType, Err: errors.New("missing")}
	}
	counterType, ok := rawType.(string)
	if !ok {
		return domain.CounterMeasurement{}, &DecodeError{Kind: ErrInvalidCounterType, Key: KeyCounterType, Value: rawType, Err: fmt.Errorf("unexpected type %T", rawType)}
	}

	switch counterType {
	case "Sum":
		m.Kind = domain.CounterSum
		m.Value, err = floatField(fields, KeyIncrement)
	case "Mean":
		m.Kind = domain.CounterMean
		m.Value, err = floatField(fields, KeyMean)
	default:
		return domain.CounterMeasurement{}, &DecodeError{Kind: ErrInvalidCounterType, Key: KeyCounterType, Value: counterType, Err: fmt.Errorf("%q", counterType)}
	}
	if err != nil {
		return domain.CounterMeasurement{}, err
	}
	return m, nil
}

// ExtractPayload returns the nested counter field map of a counter event.
// Sources either hand over the inner map under "Payload" or the positional
// wrapper {"Payload": {...}} at field "0".
func ExtractPayload(event domain.Event) (map[string]any, error) {
	if inner, ok := event.Payload[KeyPayload]; ok {
		return asMap(KeyPayload, inner)
	}
	if wrapper, ok := event.Payload["0"]; ok {
		outer, err := asMap("0", wrapper)
		if err != nil {
			return nil, err
		}
		inner, ok := outer[KeyPayload]
		if !ok {
			return nil, malformed(KeyPayload, nil, errors.New("missing"))
		}
		return asMap(KeyPayload, inner)
	}
	return nil, malformed(KeyPayload, nil, errors.New("missing"))
}

func asMap(key string, value any) (map[string]any, error) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, nil
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = v
		}
		return out, nil
	default:
		return nil, malformed(key, value, fmt.Errorf("unexpected type %T", value))
	}
}

func stringField(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", malformed(key, nil, errors.New("missing"))
	}
	value, ok := raw.(string)
	if !ok {
		return "", malformed(key, raw, fmt.Errorf("unexpected type %T", raw))
	}
	return value, nil
}

func floatField(fields map[string]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, malformed(key, nil, errors.New("missing"))
	}
	value, err := toFloat(raw)
	if err != nil {
		return 0, malformed(key, raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, malformed(key, raw, errors.New("not a finite number"))
	}
	return value, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}
}
