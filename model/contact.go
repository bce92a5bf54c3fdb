package model

import (
	"fmt"
	"time"
)

// ContactWindow is a predicted interval during which two nodes can exchange
// data. Windows are read-only once computed.
type ContactWindow struct {
	A, B  string
	Start time.Time
	End   time.Time

	PeakElevationDeg float64
	// DataRateBps is the estimated link rate in bits per second.
	DataRateBps float64
	// RangeKm is the slant range at the peak sample.
	RangeKm    float64
	MinRangeKm float64
}

// Key identifies the window within a contact plan.
func (w ContactWindow) Key() string {
	return fmt.Sprintf("%s|%s|%d", w.A, w.B, w.Start.UnixNano())
}

// Duration returns End - Start.
func (w ContactWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies within [Start, End].
func (w ContactWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Overlaps reports whether the window intersects [from, to).
func (w ContactWindow) Overlaps(from, to time.Time) bool {
	return w.Start.Before(to) && !w.End.Before(from)
}

// Peer returns the other endpoint, or "" when id is not part of the window.
func (w ContactWindow) Peer(id string) string {
	switch id {
	case w.A:
		return w.B
	case w.B:
		return w.A
	default:
		return ""
	}
}
