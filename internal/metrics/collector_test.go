package metrics

import (
	"testing"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	events := []model.Event{
		{Kind: model.EventGenerated, BundleID: "a"},
		{Kind: model.EventGenerated, BundleID: "b"},
		{Kind: model.EventGenerated, BundleID: "c"},
		{Kind: model.EventGenerated, BundleID: "d"},
		{Kind: model.EventTransferred, BundleID: "a", Attempts: 1},
		{Kind: model.EventTransferred, BundleID: "a", Attempts: 2},
		{Kind: model.EventTransferred, BundleID: "b", Attempts: 1},
		{Kind: model.EventTransferred, BundleID: "b", Attempts: 1},
		{Kind: model.EventDelivered, BundleID: "a", Delay: 10 * time.Minute},
		{Kind: model.EventDelivered, BundleID: "b", Delay: 20 * time.Minute},
		{Kind: model.EventDelivered, BundleID: "b", Delay: 25 * time.Minute},
		{Kind: model.EventExpired, BundleID: "c"},
		{Kind: model.EventDropped, BundleID: "d", Reason: "evicted"},
		{Kind: model.EventTransferFailed, BundleID: "d", Attempts: 2},
		{Kind: model.EventTick, Utilization: map[string]float64{"n1": 0.8, "n2": 0.1}},
		{Kind: model.EventTick, Utilization: map[string]float64{"n1": 0.4, "n2": 0.2}},
	}
	for _, e := range events {
		c.Observe(e)
	}

	s := c.Snapshot()
	if s.DeliveryRatio != 0.5 {
		t.Fatalf("DeliveryRatio = %v, want 0.5", s.DeliveryRatio)
	}
	if s.AvgDelay != 15*time.Minute {
		t.Fatalf("AvgDelay = %v, want 15m", s.AvgDelay)
	}
	if s.OverheadRatio != 1 {
		t.Fatalf("OverheadRatio = %v, want 1", s.OverheadRatio)
	}
	if s.DuplicateDeliveries != 1 {
		t.Fatalf("DuplicateDeliveries = %d, want 1", s.DuplicateDeliveries)
	}
	if s.Retransmissions != 2 {
		t.Fatalf("Retransmissions = %d, want 2", s.Retransmissions)
	}
	if s.Expired != 1 || s.Dropped != 1 || s.DropsByReason["evicted"] != 1 || s.FailedTransfers != 1 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.BufferUtilization["n1"] != 0.4 || s.PeakBufferUtilization["n1"] != 0.8 {
		t.Fatalf("n1 utilisation = %v peak %v", s.BufferUtilization["n1"], s.PeakBufferUtilization["n1"])
	}
	if got := s.Nodes(); len(got) != 2 || got[0] != "n1" {
		t.Fatalf("Nodes = %v", got)
	}
}

func TestEmptySnapshotHasZeroRatios(t *testing.T) {
	s := NewCollector().Snapshot()
	if s.DeliveryRatio != 0 || s.OverheadRatio != 0 || s.AvgDelay != 0 {
		t.Fatalf("empty snapshot = %+v", s)
	}
}
