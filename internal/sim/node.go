package sim

import (
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/core"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/routing"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// Node is a satellite or ground station taking part in the run. Its buffer
// and router are owned by the scheduler; callers must only read a Node while
// the scheduler is not ticking.
type Node struct {
	ID              string
	Role            model.NodeRole
	Propagator      core.Propagator
	MinElevationDeg float64

	Buffer *buffer.Manager
	Router routing.Router

	delivered map[string]struct{}
}

// HasDelivered reports whether the bundle key reached this node as its
// destination.
func (n *Node) HasDelivered(key string) bool {
	_, ok := n.delivered[key]
	return ok
}

// DeliveredCount returns the number of distinct bundles delivered here.
func (n *Node) DeliveredCount() int { return len(n.delivered) }

// Summary builds the node's advertisement for a peer.
func (n *Node) Summary(now time.Time) routing.Summary {
	s := routing.NewSummary(n.ID)
	for _, k := range n.Buffer.IDs() {
		s.Held[k] = struct{}{}
	}
	for k := range n.delivered {
		s.Delivered[k] = struct{}{}
	}
	n.Router.Advertise(now, &s)
	return s
}

func (n *Node) endpoint() core.Endpoint {
	return core.Endpoint{
		ID:              n.ID,
		Role:            n.Role,
		Propagator:      n.Propagator,
		MinElevationDeg: n.MinElevationDeg,
	}
}
