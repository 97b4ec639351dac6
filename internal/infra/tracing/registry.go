package tracing

import (
	"sync"

	"tracetap/internal/domain"
)

// registry holds observers in registration order. Dispatch works on a
// snapshot so late subscribers never race with an in-flight event.
type registry struct {
	mu       sync.RWMutex
	counters []domain.CounterObserver
	events   []domain.EventObserver
}

func (r *registry) addCounter(observer domain.CounterObserver) {
	if observer == nil {
		return
	}
	r.mu.Lock()
	r.counters = append(r.counters, observer)
	r.mu.Unlock()
}

func (r *registry) addEvent(observer domain.EventObserver) {
	if observer == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, observer)
	r.mu.Unlock()
}

func (r *registry) counterObservers() []domain.CounterObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[:len(r.counters):len(r.counters)]
}

func (r *registry) eventObservers() []domain.EventObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[:len(r.events):len(r.events)]
}
