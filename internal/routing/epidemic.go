package routing

import (
	"sort"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// Epidemic floods every bundle to every peer that does not already know it.
// The sender keeps its copy.
type Epidemic struct {
	node      string
	seen      map[string]struct{}
	delivered map[string]struct{}
}

// NewEpidemic returns an Epidemic router for node.
func NewEpidemic(node string) *Epidemic {
	return &Epidemic{
		node:      node,
		seen:      make(map[string]struct{}),
		delivered: make(map[string]struct{}),
	}
}

func (e *Epidemic) Algorithm() Algorithm { return AlgorithmEpidemic }

// Advertise publishes the summary vector and the known-delivered set.
func (e *Epidemic) Advertise(_ time.Time, s *Summary) {
	for k := range e.seen {
		s.Seen[k] = struct{}{}
	}
	for k := range e.delivered {
		s.Delivered[k] = struct{}{}
	}
}

// Encounter merges the peer's delivered set into the local summary and
// purges buffered copies of bundles that already reached their destination.
// The peer's held and seen sets are only consulted per offer in
// SelectForContact; folding them into the local seen set would mark bundles
// as known before they are actually copied.
func (e *Epidemic) Encounter(_ time.Time, buf *buffer.Manager, peer Summary) []*model.Bundle {
	keys := make([]string, 0, len(peer.Delivered))
	for k := range peer.Delivered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var purged []*model.Bundle
	for _, k := range keys {
		e.seen[k] = struct{}{}
		e.delivered[k] = struct{}{}
		if buf == nil {
			continue
		}
		if b, ok := buf.Discard(k); ok {
			purged = append(purged, b)
		}
	}
	return purged
}

// SelectForContact offers every live bundle the remote does not know,
// oldest first within a priority class.
func (e *Epidemic) SelectForContact(now time.Time, buf *buffer.Manager, contact model.ContactWindow, remote Summary) []Offer {
	var offers []Offer
	for _, b := range buf.Retrieve(live(now)) {
		e.seen[b.Key()] = struct{}{}
		if _, done := e.delivered[b.Key()]; done {
			continue
		}
		if remote.Knows(b.Key()) {
			continue
		}
		offers = append(offers, Offer{Bundle: b, Copies: b.Copies})
	}
	sortOffers(now, offers, func(a, b Offer) int {
		switch {
		case a.Bundle.CreatedAt.Before(b.Bundle.CreatedAt):
			return -1
		case b.Bundle.CreatedAt.Before(a.Bundle.CreatedAt):
			return 1
		}
		return 0
	})
	return offers
}

// Committed records that the peer now holds the bundle.
func (e *Epidemic) Committed(_ time.Time, offer Offer, peer string) {
	e.seen[offer.Bundle.Key()] = struct{}{}
	if offer.Bundle.Destination == peer {
		e.delivered[offer.Bundle.Key()] = struct{}{}
	}
}
