// Package eventsource turns a raw diagnostic stream into domain events.
package eventsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"tracetap/internal/domain"
)

// JSONLines reads one JSON object per line:
//
//	{"provider":"System.Runtime","name":"EventCounters","timestamp":"...","pid":42,"payload":{...}}
//
// Numbers inside payloads are kept as json.Number.
type JSONLines struct {
	r io.Reader
}

func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{r: r}
}

// JSONLinesFactory is a SourceFactory for streams that are already
// decoded to JSON lines.
func JSONLinesFactory(stream io.Reader) (domain.EventSource, error) {
	if stream == nil {
		return nil, errors.New("nil stream")
	}
	return NewJSONLines(stream), nil
}

// ForEach delivers events in stream order. A malformed record ends the
// stream with an error; a clean EOF returns nil.
func (s *JSONLines) ForEach(handler func(domain.Event)) error {
	dec := json.NewDecoder(s.r)
	dec.UseNumber()
	for record := 1; ; record++ {
		var event domain.Event
		err := dec.Decode(&event)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode event record %d: %w", record, err)
		}
		handler(event)
	}
}
