package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for reading simulation time. The scheduler and
// its collaborators depend on it rather than on a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController paces simulation time.
type Mode int

const (
	// Accelerated advances as quickly as the loop can run while still
	// stepping by Tick.
	Accelerated Mode = iota
	// RealTime holds each tick for Tick/Speed of wall-clock time.
	RealTime
)

func (m Mode) String() string {
	if m == RealTime {
		return "realtime"
	}
	return "accelerated"
}

// TimeController owns simulated time: a fixed epoch, a tick size and the
// current instant. It notifies registered listeners on every advance.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode
	// Speed scales real-time pacing; 2 runs twice as fast as wall-clock.
	// Values <= 0 mean 1.
	Speed float64

	currentTime time.Time

	listeners []func(time.Time)
	lastPace  time.Time
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Step returns the configured tick.
func (tc *TimeController) Step() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.Tick
}

// Elapsed returns the simulated time since StartTime.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// SetTime moves the clock to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked after every Advance.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Advance moves the clock forward by one tick, notifies listeners and
// returns the new time.
func (tc *TimeController) Advance() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Pace blocks in RealTime mode until one scaled tick of wall-clock time has
// passed since the previous call. In Accelerated mode it returns at once.
// It returns ctx.Err() if ctx is done first.
func (tc *TimeController) Pace(ctx context.Context) error {
	if tc.Mode != RealTime {
		return ctx.Err()
	}
	speed := tc.Speed
	if speed <= 0 {
		speed = 1
	}
	wait := time.Duration(float64(tc.Step()) / speed)

	tc.mu.Lock()
	last := tc.lastPace
	tc.mu.Unlock()

	if !last.IsZero() {
		wait -= time.Since(last)
	}
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	tc.mu.Lock()
	tc.lastPace = time.Now()
	tc.mu.Unlock()
	return nil
}
