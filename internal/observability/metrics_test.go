package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

func TestObserveCountsBundleEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []model.Event{
		{Kind: model.EventGenerated, Time: now},
		{Kind: model.EventGenerated, Time: now},
		{Kind: model.EventTransferred, Time: now, Attempts: 1},
		{Kind: model.EventTransferred, Time: now, Attempts: 3},
		{Kind: model.EventTransferFailed, Time: now, Attempts: 2, Reason: "lost"},
		{Kind: model.EventDelivered, Time: now, BundleID: "gs-a/1/1", Delay: 90 * time.Minute},
		{Kind: model.EventDelivered, Time: now, BundleID: "gs-a/1/1", Delay: 95 * time.Minute},
		{Kind: model.EventExpired, Time: now},
		{Kind: model.EventDropped, Time: now, Reason: "evicted"},
		{Kind: model.EventDropped, Time: now, Reason: "evicted"},
		{Kind: model.EventDropped, Time: now, Reason: "rejected"},
	} {
		collector.Observe(e)
	}

	if got := testutil.ToFloat64(collector.Generated); got != 2 {
		t.Fatalf("dtn_bundles_generated_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Transfers); got != 2 {
		t.Fatalf("dtn_bundle_transfers_total = %v, want 2", got)
	}
	// 2 from the second transfer, 1 from the failed attempt.
	if got := testutil.ToFloat64(collector.Retransmissions); got != 3 {
		t.Fatalf("dtn_arq_retransmissions_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.TransferFailures.WithLabelValues("lost")); got != 1 {
		t.Fatalf("dtn_transfer_failures_total{lost} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Delivered); got != 1 {
		t.Fatalf("dtn_bundles_delivered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Duplicates); got != 1 {
		t.Fatalf("dtn_bundles_duplicate_deliveries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Expired); got != 1 {
		t.Fatalf("dtn_bundles_expired_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Dropped.WithLabelValues("evicted")); got != 2 {
		t.Fatalf("dtn_bundles_dropped_total{evicted} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Dropped.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("dtn_bundles_dropped_total{rejected} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "dtn_delivery_delay_seconds", nil); count != 1 {
		t.Fatalf("dtn_delivery_delay_seconds sample_count = %d, want 1", count)
	}
}

func TestObserveTickSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	at := time.Unix(1_700_000_000, 0).UTC()
	collector.Observe(model.Event{
		Kind:           model.EventTick,
		Time:           at,
		Utilization:    map[string]float64{"sat-1": 0.25, "gs-1": 0.5},
		ActiveContacts: 3,
	})

	if got := testutil.ToFloat64(collector.BufferUtilization.WithLabelValues("sat-1")); got != 0.25 {
		t.Fatalf("dtn_buffer_utilization_ratio{sat-1} = %v, want 0.25", got)
	}
	if got := testutil.ToFloat64(collector.BufferUtilization.WithLabelValues("gs-1")); got != 0.5 {
		t.Fatalf("dtn_buffer_utilization_ratio{gs-1} = %v, want 0.5", got)
	}
	if got := testutil.ToFloat64(collector.SimulatedTime); got != float64(at.Unix()) {
		t.Fatalf("dtn_simulated_time_seconds = %v, want %v", got, at.Unix())
	}
	if got := testutil.ToFloat64(collector.ActiveContacts); got != 3 {
		t.Fatalf("dtn_contacts_active = %v, want 3", got)
	}
}

func TestNewSimCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}

	second.Observe(model.Event{Kind: model.EventGenerated})
	if got := testutil.ToFloat64(first.Generated); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestObserveOnNilCollector(t *testing.T) {
	var collector *SimCollector
	collector.Observe(model.Event{Kind: model.EventGenerated})
	if collector.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerExposesSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.Observe(model.Event{Kind: model.EventGenerated})
	collector.Observe(model.Event{Kind: model.EventDelivered, Delay: time.Minute})
	collector.Observe(model.Event{Kind: model.EventDropped, Reason: "evicted"})
	collector.Observe(model.Event{Kind: model.EventTransferFailed, Reason: "window-closed", Attempts: 1})
	collector.Observe(model.Event{Kind: model.EventTick, Utilization: map[string]float64{"sat-1": 0.1}, ActiveContacts: 1})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"dtn_bundles_generated_total",
		"dtn_bundles_delivered_total",
		"dtn_delivery_delay_seconds",
		`dtn_bundles_dropped_total{reason="evicted"}`,
		`dtn_transfer_failures_total{reason="window-closed"}`,
		`dtn_buffer_utilization_ratio{node="sat-1"}`,
		"dtn_simulated_time_seconds",
		"dtn_contacts_active",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
