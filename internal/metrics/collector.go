// Package metrics aggregates the simulation event stream into run-level
// delivery, delay, overhead and buffer statistics.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// Snapshot is a point-in-time view of the aggregated metrics.
type Snapshot struct {
	// DeliveryRatio is unique deliveries over generated bundles.
	DeliveryRatio float64
	// AvgDelay is the mean creation-to-delivery time of unique deliveries.
	AvgDelay time.Duration
	// OverheadRatio is (transfers - deliveries) / deliveries.
	OverheadRatio float64

	BufferUtilization     map[string]float64
	PeakBufferUtilization map[string]float64

	Generated           int64
	Delivered           int64
	DuplicateDeliveries int64
	Transfers           int64
	FailedTransfers     int64
	Retransmissions     int64
	Expired             int64
	Dropped             int64
	DropsByReason       map[string]int64
}

// Nodes returns the node IDs with buffer samples, sorted.
func (s Snapshot) Nodes() []string {
	out := make([]string, 0, len(s.BufferUtilization))
	for n := range s.BufferUtilization {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Collector consumes events. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	generated       int64
	delivered       int64
	duplicates      int64
	transfers       int64
	failed          int64
	retransmissions int64
	expired         int64
	dropped         int64
	dropsByReason   map[string]int64

	delaySum      time.Duration
	deliveredKeys map[string]struct{}

	util map[string]float64
	peak map[string]float64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		dropsByReason: make(map[string]int64),
		deliveredKeys: make(map[string]struct{}),
		util:          make(map[string]float64),
		peak:          make(map[string]float64),
	}
}

// Observe folds one event into the aggregates.
func (c *Collector) Observe(e model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case model.EventGenerated:
		c.generated++
	case model.EventTransferred:
		c.transfers++
		if e.Attempts > 1 {
			c.retransmissions += int64(e.Attempts - 1)
		}
	case model.EventTransferFailed:
		c.failed++
		if e.Attempts > 1 {
			c.retransmissions += int64(e.Attempts - 1)
		}
	case model.EventDelivered:
		if _, dup := c.deliveredKeys[e.BundleID]; dup {
			c.duplicates++
			return
		}
		c.deliveredKeys[e.BundleID] = struct{}{}
		c.delivered++
		c.delaySum += e.Delay
	case model.EventExpired:
		c.expired++
	case model.EventDropped:
		c.dropped++
		c.dropsByReason[e.Reason]++
	case model.EventTick:
		for node, u := range e.Utilization {
			c.util[node] = u
			if u > c.peak[node] {
				c.peak[node] = u
			}
		}
	}
}

// Snapshot returns the current aggregates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		BufferUtilization:     make(map[string]float64, len(c.util)),
		PeakBufferUtilization: make(map[string]float64, len(c.peak)),
		DropsByReason:         make(map[string]int64, len(c.dropsByReason)),
		Generated:             c.generated,
		Delivered:             c.delivered,
		DuplicateDeliveries:   c.duplicates,
		Transfers:             c.transfers,
		FailedTransfers:       c.failed,
		Retransmissions:       c.retransmissions,
		Expired:               c.expired,
		Dropped:               c.dropped,
	}
	for k, v := range c.util {
		s.BufferUtilization[k] = v
	}
	for k, v := range c.peak {
		s.PeakBufferUtilization[k] = v
	}
	for k, v := range c.dropsByReason {
		s.DropsByReason[k] = v
	}
	if c.generated > 0 {
		s.DeliveryRatio = float64(c.delivered) / float64(c.generated)
	}
	if c.delivered > 0 {
		s.AvgDelay = c.delaySum / time.Duration(c.delivered)
		s.OverheadRatio = float64(c.transfers-c.delivered) / float64(c.delivered)
	}
	return s
}
