package telemetry

import (
	"sort"
	"sync"
	"time"
)

const (
	HealthStatusOK       = "ok"
	HealthStatusStarting = "starting"
	HealthStatusStale    = "stale"
)

// HealthTracker reports healthy while every registered heartbeat keeps
// beating within its window.
type HealthTracker struct {
	mu    sync.Mutex
	beats map[string]*Heartbeat
	now   func() time.Time
}

type Heartbeat struct {
	tracker    *HealthTracker
	name       string
	staleAfter time.Duration
	last       time.Time
}

type HealthCheck struct {
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	LastBeat time.Time `json:"lastBeat,omitzero"`
}

type HealthReport struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		beats: make(map[string]*Heartbeat),
		now:   time.Now,
	}
}

// Register adds a heartbeat that goes stale staleAfter past its last beat.
// Registering a name twice returns the existing heartbeat.
func (t *HealthTracker) Register(name string, staleAfter time.Duration) *Heartbeat {
	t.mu.Lock()
	defer t.mu.Unlock()
	if beat, ok := t.beats[name]; ok {
		return beat
	}
	beat := &Heartbeat{tracker: t, name: name, staleAfter: staleAfter}
	t.beats[name] = beat
	return beat
}

func (h *Heartbeat) Beat() {
	if h == nil {
		return
	}
	h.tracker.mu.Lock()
	h.last = h.tracker.now()
	h.tracker.mu.Unlock()
}

func (t *HealthTracker) Report() HealthReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	report := HealthReport{Status: HealthStatusOK}
	for _, beat := range t.beats {
		check := HealthCheck{Name: beat.name, LastBeat: beat.last, Status: HealthStatusOK}
		switch {
		case beat.last.IsZero():
			check.Status = HealthStatusStarting
		case beat.staleAfter > 0 && now.Sub(beat.last) > beat.staleAfter:
			check.Status = HealthStatusStale
		}
		if check.Status != HealthStatusOK {
			report.Status = check.Status
		}
		report.Checks = append(report.Checks, check)
	}
	sort.Slice(report.Checks, func(i, j int) bool {
		return report.Checks[i].Name < report.Checks[j].Name
	})
	return report
}
