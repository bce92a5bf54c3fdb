package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// SimCollector bundles Prometheus metrics for a simulation run. It is fed
// from the scheduler's event stream via Observe.
type SimCollector struct {
	gatherer prometheus.Gatherer

	mu            sync.Mutex
	deliveredKeys map[string]struct{}

	Generated        prometheus.Counter
	Transfers        prometheus.Counter
	Delivered        prometheus.Counter
	Duplicates       prometheus.Counter
	Expired          prometheus.Counter
	Dropped          *prometheus.CounterVec
	TransferFailures *prometheus.CounterVec
	Retransmissions  prometheus.Counter
	DeliveryDelay    prometheus.Histogram

	BufferUtilization *prometheus.GaugeVec
	SimulatedTime     prometheus.Gauge
	ActiveContacts    prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer, deliveredKeys: make(map[string]struct{})}
	var err error

	if c.Generated, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_bundles_generated_total",
		Help: "Bundles handed to their source node.",
	}), "dtn_bundles_generated_total"); err != nil {
		return nil, err
	}
	if c.Transfers, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_bundle_transfers_total",
		Help: "Successful bundle transfers over contacts, including the final hop.",
	}), "dtn_bundle_transfers_total"); err != nil {
		return nil, err
	}
	if c.Delivered, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_bundles_delivered_total",
		Help: "Distinct bundles that reached their destination; later copies count as duplicates.",
	}), "dtn_bundles_delivered_total"); err != nil {
		return nil, err
	}
	if c.Duplicates, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_bundles_duplicate_deliveries_total",
		Help: "Replicas that reached a destination which already had the bundle.",
	}), "dtn_bundles_duplicate_deliveries_total"); err != nil {
		return nil, err
	}
	if c.Expired, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_bundles_expired_total",
		Help: "Bundle replicas removed after their TTL lapsed.",
	}), "dtn_bundles_expired_total"); err != nil {
		return nil, err
	}
	if c.Dropped, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtn_bundles_dropped_total",
		Help: "Bundle replicas dropped by a buffer, labeled by reason.",
	}, []string{"reason"}), "dtn_bundles_dropped_total"); err != nil {
		return nil, err
	}
	if c.TransferFailures, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtn_transfer_failures_total",
		Help: "Attempted transfers that did not complete, labeled by reason.",
	}, []string{"reason"}), "dtn_transfer_failures_total"); err != nil {
		return nil, err
	}
	if c.Retransmissions, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtn_arq_retransmissions_total",
		Help: "ARQ retransmissions after simulated loss.",
	}), "dtn_arq_retransmissions_total"); err != nil {
		return nil, err
	}
	if c.DeliveryDelay, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dtn_delivery_delay_seconds",
		Help:    "Creation-to-delivery delay in simulated seconds.",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800, 43200, 86400, 172800},
	}), "dtn_delivery_delay_seconds"); err != nil {
		return nil, err
	}
	if c.BufferUtilization, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtn_buffer_utilization_ratio",
		Help: "Buffer occupancy over capacity, per node.",
	}, []string{"node"}), "dtn_buffer_utilization_ratio"); err != nil {
		return nil, err
	}
	if c.SimulatedTime, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dtn_simulated_time_seconds",
		Help: "Current simulated time as a Unix timestamp.",
	}), "dtn_simulated_time_seconds"); err != nil {
		return nil, err
	}
	if c.ActiveContacts, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dtn_contacts_active",
		Help: "Contact windows active in the last tick.",
	}), "dtn_contacts_active"); err != nil {
		return nil, err
	}
	return c, nil
}

// Observe updates metrics from one simulation event. It matches the
// scheduler's Subscribe callback signature.
func (c *SimCollector) Observe(e model.Event) {
	if c == nil {
		return
	}
	switch e.Kind {
	case model.EventGenerated:
		c.Generated.Inc()
	case model.EventTransferred:
		c.Transfers.Inc()
		if e.Attempts > 1 {
			c.Retransmissions.Add(float64(e.Attempts - 1))
		}
	case model.EventTransferFailed:
		c.TransferFailures.WithLabelValues(e.Reason).Inc()
		if e.Attempts > 1 {
			c.Retransmissions.Add(float64(e.Attempts - 1))
		}
	case model.EventDelivered:
		if !c.firstDelivery(e.BundleID) {
			c.Duplicates.Inc()
			return
		}
		c.Delivered.Inc()
		c.DeliveryDelay.Observe(e.Delay.Seconds())
	case model.EventExpired:
		c.Expired.Inc()
	case model.EventDropped:
		c.Dropped.WithLabelValues(e.Reason).Inc()
	case model.EventTick:
		for node, u := range e.Utilization {
			c.BufferUtilization.WithLabelValues(node).Set(u)
		}
		c.SimulatedTime.Set(float64(e.Time.Unix()))
		c.ActiveContacts.Set(float64(e.ActiveContacts))
	}
}

func (c *SimCollector) firstDelivery(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.deliveredKeys[key]; dup {
		return false
	}
	c.deliveredKeys[key] = struct{}{}
	return true
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
