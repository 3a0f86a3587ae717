// Package timectrl drives the simulation clock: each tick advances the scene
// by a fixed angle step and notifies registered listeners.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime emits one tick per Tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated emits ticks as fast as the listeners return.
	Accelerated
)

// TickFunc is called on every tick with the tick number (starting at 1) and
// the angle step to apply.
type TickFunc func(tick int, angle float64)

// TimeController counts ticks and notifies listeners.
type TimeController struct {
	mu        sync.RWMutex
	Tick      time.Duration
	AngleStep float64
	Mode      Mode

	ticks     int
	listeners []TickFunc
}

// NewTimeController constructs a controller.
func NewTimeController(tick time.Duration, angleStep float64, mode Mode) *TimeController {
	return &TimeController{
		Tick:      tick,
		AngleStep: angleStep,
		Mode:      mode,
	}
}

// Ticks returns how many ticks have been emitted.
func (tc *TimeController) Ticks() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// Angle returns the total angle emitted so far.
func (tc *TimeController) Angle() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return float64(tc.ticks) * tc.AngleStep
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn TickFunc) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// StepOnce emits a single tick synchronously.
func (tc *TimeController) StepOnce() {
	tc.mu.Lock()
	tc.ticks++
	tick := tc.ticks
	listeners := append([]TickFunc(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(tick, tc.AngleStep)
	}
}

// Start emits ticks in a separate goroutine until maxTicks have been emitted
// (0 means no limit) or ctx is cancelled. It returns a channel that is closed
// when the controller stops.
func (tc *TimeController) Start(ctx context.Context, maxTicks int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tickC <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for emitted := 0; maxTicks <= 0 || emitted < maxTicks; emitted++ {
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tickC:
				}
			} else if ctx.Err() != nil {
				return
			}
			tc.StepOnce()
		}
	}()
	return done
}
