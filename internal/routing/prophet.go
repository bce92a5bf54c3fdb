package routing

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// Prophet forwards a bundle only to peers with a higher delivery
// predictability for its destination, handing the bundle off.
type Prophet struct {
	node    string
	params  ProphetParams
	p       map[string]float64
	updated map[string]time.Time
}

// NewProphet returns a PRoPHET router for node. Zero parameters take the
// defaults.
func NewProphet(node string, params ProphetParams) *Prophet {
	params = Config{Prophet: params}.WithDefaults().Prophet
	return &Prophet{
		node:    node,
		params:  params,
		p:       make(map[string]float64),
		updated: make(map[string]time.Time),
	}
}

func (r *Prophet) Algorithm() Algorithm { return AlgorithmProphet }

// Predictability returns P(node, dest) without aging it.
func (r *Prophet) Predictability(dest string) float64 {
	return r.p[dest]
}

// Advertise ages the table and publishes it.
func (r *Prophet) Advertise(now time.Time, s *Summary) {
	r.age(now)
	for d, v := range r.p {
		s.Predictability[d] = v
	}
}

// Encounter applies aging, the direct update for the peer and the
// transitive update through the peer's table.
func (r *Prophet) Encounter(now time.Time, _ *buffer.Manager, peer Summary) []*model.Bundle {
	if peer.NodeID == "" || peer.NodeID == r.node {
		return nil
	}
	r.age(now)

	b := peer.NodeID
	old := r.p[b]
	r.set(b, old+(1-old)*r.params.PEncounter, now)
	pb := r.p[b]

	dests := make([]string, 0, len(peer.Predictability))
	for c := range peer.Predictability {
		dests = append(dests, c)
	}
	sort.Strings(dests)
	for _, c := range dests {
		if c == r.node || c == b {
			continue
		}
		pc := r.p[c]
		r.set(c, pc+(1-pc)*pb*peer.Predictability[c]*r.params.Beta, now)
	}
	return nil
}

// SelectForContact offers bundles whose destination is the peer or for which
// the peer is the better next hop.
func (r *Prophet) SelectForContact(now time.Time, buf *buffer.Manager, contact model.ContactWindow, remote Summary) []Offer {
	peer := remote.NodeID
	var offers []Offer
	for _, b := range buf.Retrieve(live(now)) {
		if remote.Knows(b.Key()) {
			continue
		}
		if b.Destination != peer && !(remote.Predictability[b.Destination] > r.p[b.Destination]) {
			continue
		}
		offers = append(offers, Offer{Bundle: b, Copies: b.Copies, Handoff: true})
	}
	sortOffers(now, offers, func(a, b Offer) int {
		pa, pb := peerP(remote, a.Bundle.Destination), peerP(remote, b.Bundle.Destination)
		switch {
		case pa > pb:
			return -1
		case pa < pb:
			return 1
		}
		return 0
	})
	return offers
}

// Committed is a no-op: the handoff itself is applied by the caller.
func (r *Prophet) Committed(time.Time, Offer, string) {}

func peerP(remote Summary, dest string) float64 {
	if dest == remote.NodeID {
		return 1
	}
	return remote.Predictability[dest]
}

// age decays every entry by gamma^k, k being whole aging units elapsed since
// the entry's last update. The fractional remainder carries over.
func (r *Prophet) age(now time.Time) {
	unit := r.params.AgingUnit
	for d, last := range r.updated {
		elapsed := now.Sub(last)
		if elapsed < unit {
			continue
		}
		k := int64(elapsed / unit)
		r.p[d] = clamp01(r.p[d] * math.Pow(r.params.Gamma, float64(k)))
		r.updated[d] = last.Add(time.Duration(k) * unit)
	}
}

func (r *Prophet) set(dest string, v float64, now time.Time) {
	r.p[dest] = clamp01(v)
	r.updated[dest] = now
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
