// Package consumers holds the observers tracetap ships with.
package consumers

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"tracetap/internal/domain"
)

// Console prints one "DisplayName: Value Units" line per counter.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	name   *color.Color
	sum    *color.Color
	mean   *color.Color
	events *color.Color
}

// NewConsole writes to w. Colors are used only when colorize is set.
func NewConsole(w io.Writer, colorize bool) *Console {
	c := &Console{
		w:      w,
		name:   color.New(color.Bold),
		sum:    color.New(color.FgBlue),
		mean:   color.New(color.FgGreen),
		events: color.New(color.FgYellow),
	}
	for _, col := range []*color.Color{c.name, c.sum, c.mean, c.events} {
		if colorize {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// ObserveCounter is a domain.CounterObserver.
func (c *Console) ObserveCounter(m domain.CounterMeasurement) {
	value := c.sum
	if m.Kind == domain.CounterMean {
		value = c.mean
	}
	line := strings.TrimRight(fmt.Sprintf("%s: %s %s",
		c.name.Sprint(m.DisplayName),
		value.Sprint(FormatValue(m.Value)),
		m.DisplayUnits,
	), " ")

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// ObserveEvent is a domain.EventObserver printing provider and event name.
func (c *Console) ObserveEvent(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", c.events.Sprintf("[%s]", e.ProviderName), e.EventName)
}

// FormatValue renders a measurement value in its shortest exact form.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
