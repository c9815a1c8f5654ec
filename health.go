package usagegate

import (
	"sync"
	"time"
)

const (
	breakerFailureThreshold = 3
	breakerFailureWindow    = time.Minute
	breakerOpenPeriod       = 30 * time.Second
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// StoreHealth is a circuit breaker over the durable counter store. Repeated
// infrastructure failures open it for a cool-down so enforcers go straight
// to the ephemeral fallback instead of re-probing the store on every
// request. It never causes a rejection, only changes which fail-open path
// is taken.
type StoreHealth struct {
	mu       sync.Mutex
	state    breakerState
	failures []time.Time // sliding window of failure timestamps
	openedAt time.Time
}

// NewStoreHealth creates a closed breaker.
func NewStoreHealth() *StoreHealth {
	return &StoreHealth{}
}

// Available reports whether the store should be tried. While open it
// returns false; after the cool-down it transitions to half-open and lets
// one caller probe.
func (h *StoreHealth) Available(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == breakerOpen && now.Sub(h.openedAt) >= breakerOpenPeriod {
		h.state = breakerHalfOpen
	}
	return h.state != breakerOpen
}

// RecordSuccess closes the breaker.
func (h *StoreHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = breakerClosed
	h.failures = h.failures[:0]
}

// RecordFailure records a store failure; crossing the threshold within the
// window opens the breaker. A half-open probe failure reopens immediately.
func (h *StoreHealth) RecordFailure(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == breakerHalfOpen {
		h.state = breakerOpen
		h.openedAt = now
		return
	}
	if h.state == breakerOpen {
		return
	}

	cutoff := now.Add(-breakerFailureWindow)
	valid := h.failures[:0]
	for _, t := range h.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	h.failures = append(valid, now)

	if len(h.failures) >= breakerFailureThreshold {
		h.state = breakerOpen
		h.openedAt = now
	}
}
