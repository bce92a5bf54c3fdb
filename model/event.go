package model

import "time"

// EventKind classifies simulation events.
type EventKind string

const (
	EventGenerated      EventKind = "generated"
	EventTransferred    EventKind = "transferred"
	EventDelivered      EventKind = "delivered"
	EventExpired        EventKind = "expired"
	EventDropped        EventKind = "dropped"
	EventTransferFailed EventKind = "transfer-failed"
	EventContactStarted EventKind = "contact-started"
	EventContactEnded   EventKind = "contact-ended"
	// EventTick closes every tick and carries per-node buffer utilisation.
	EventTick EventKind = "tick"
)

// Event is one entry of the per-tick event stream. Bundle fields are
// copied so consumers never share state with the simulation.
type Event struct {
	Kind EventKind
	Time time.Time

	// Node is where the event happened; Peer is the other side of a
	// transfer or contact.
	Node string
	Peer string

	BundleID    string
	CopyID      uint64
	Source      string
	Destination string
	Priority    Priority
	Size        int64

	// Delay is delivery time minus creation time (delivered events).
	Delay time.Duration
	// Reason qualifies dropped and transfer-failed events.
	Reason string
	// Attempts counts transmissions for transferred and transfer-failed
	// events.
	Attempts int

	// Utilization maps node to buffer used/capacity (tick events).
	Utilization map[string]float64
	// ActiveContacts counts active contact windows (tick events).
	ActiveContacts int
}

// BundleEvent fills the bundle fields of an event from b.
func BundleEvent(kind EventKind, at time.Time, node string, b *Bundle) Event {
	return Event{
		Kind:        kind,
		Time:        at,
		Node:        node,
		BundleID:    b.Key(),
		CopyID:      b.CopyID,
		Source:      b.Source,
		Destination: b.Destination,
		Priority:    b.Priority,
		Size:        b.Size(),
	}
}
