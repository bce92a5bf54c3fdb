package routing

import (
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// SprayAndWait implements binary spray. A replica carrying c > 1 copies
// gives floor(c/2) to a peer and keeps ceil(c/2); with one copy left it
// waits for the destination.
type SprayAndWait struct {
	node string
}

// NewSprayAndWait returns a Spray-and-Wait router for node.
func NewSprayAndWait(node string) *SprayAndWait {
	return &SprayAndWait{node: node}
}

func (s *SprayAndWait) Algorithm() Algorithm { return AlgorithmSprayAndWait }

// Advertise adds nothing; copy counts travel on the bundles.
func (s *SprayAndWait) Advertise(time.Time, *Summary) {}

func (s *SprayAndWait) Encounter(time.Time, *buffer.Manager, Summary) []*model.Bundle { return nil }

// SelectForContact hands every bundle to its destination and sprays half of
// the copies of the others.
func (s *SprayAndWait) SelectForContact(now time.Time, buf *buffer.Manager, contact model.ContactWindow, remote Summary) []Offer {
	peer := remote.NodeID
	var offers []Offer
	for _, b := range buf.Retrieve(live(now)) {
		if remote.Knows(b.Key()) {
			continue
		}
		switch {
		case b.Destination == peer:
			offers = append(offers, Offer{Bundle: b, Copies: b.Copies, Handoff: true})
		case b.Copies > 1:
			offers = append(offers, Offer{Bundle: b, Copies: b.Copies / 2})
		}
	}
	sortOffers(now, offers, func(a, b Offer) int {
		ad, bd := a.Bundle.Destination == peer, b.Bundle.Destination == peer
		switch {
		case ad && !bd:
			return -1
		case bd && !ad:
			return 1
		case a.Bundle.Copies != b.Bundle.Copies:
			if a.Bundle.Copies > b.Bundle.Copies {
				return -1
			}
			return 1
		}
		return 0
	})
	return offers
}

// Committed keeps ceil(c/2) copies on the sender after a spray.
func (s *SprayAndWait) Committed(_ time.Time, offer Offer, _ string) {
	if offer.Handoff {
		return
	}
	offer.Bundle.Copies -= offer.Copies
	if offer.Bundle.Copies < 1 {
		offer.Bundle.Copies = 1
	}
}
