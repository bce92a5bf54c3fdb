package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/logging"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/metrics"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/observability"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/scenario"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/sim"
)

func main() {
	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

type options struct {
	scenario    string
	duration    time.Duration
	tick        time.Duration
	realtime    float64
	metricsAddr string
	seed        uint64
	seedSet     bool
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.scenario, "scenario", "", "path to a YAML scenario file")
	fs.DurationVar(&o.duration, "duration", 0, "override the scenario duration")
	fs.DurationVar(&o.tick, "tick", 0, "override the scheduler tick")
	fs.Float64Var(&o.realtime, "realtime", 0, "pace the run against the wall clock at this speed-up (0 runs accelerated)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	fs.Uint64Var(&o.seed, "seed", 0, "override the scenario random seed")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.seedSet = true
		}
	})
	if o.scenario == "" {
		return o, errors.New("-scenario is required")
	}
	if o.realtime < 0 {
		return o, fmt.Errorf("-realtime %v must not be negative", o.realtime)
	}
	return o, nil
}

// report is the JSON document printed at the end of a run.
type report struct {
	Scenario     string             `json:"scenario"`
	State        string             `json:"state"`
	SimTime      time.Time          `json:"sim_time"`
	Ticks        int64              `json:"ticks"`
	Contacts     int                `json:"contacts"`
	Delivery     float64            `json:"delivery_ratio"`
	AvgDelaySec  float64            `json:"avg_delay_seconds"`
	Overhead     float64            `json:"overhead_ratio"`
	Generated    int64              `json:"generated"`
	Delivered    int64              `json:"delivered"`
	Duplicates   int64              `json:"duplicate_deliveries"`
	Transfers    int64              `json:"transfers"`
	Failed       int64              `json:"failed_transfers"`
	Retransmits  int64              `json:"retransmissions"`
	Expired      int64              `json:"expired"`
	Dropped      int64              `json:"dropped"`
	DropsBy      map[string]int64   `json:"drops_by_reason,omitempty"`
	Utilization  map[string]float64 `json:"buffer_utilization"`
	PeakUtilized map[string]float64 `json:"peak_buffer_utilization"`
}

func newReport(name string, st sim.Status, contacts int, snap metrics.Snapshot) report {
	return report{
		Scenario:     name,
		State:        st.State.String(),
		SimTime:      st.SimTime,
		Ticks:        st.Ticks,
		Contacts:     contacts,
		Delivery:     snap.DeliveryRatio,
		AvgDelaySec:  snap.AvgDelay.Seconds(),
		Overhead:     snap.OverheadRatio,
		Generated:    snap.Generated,
		Delivered:    snap.Delivered,
		Duplicates:   snap.DuplicateDeliveries,
		Transfers:    snap.Transfers,
		Failed:       snap.FailedTransfers,
		Retransmits:  snap.Retransmissions,
		Expired:      snap.Expired,
		Dropped:      snap.Dropped,
		DropsBy:      snap.DropsByReason,
		Utilization:  snap.BufferUtilization,
		PeakUtilized: snap.PeakBufferUtilization,
	}
}

// run loads the scenario, drives it to completion (or until ctx is
// cancelled) and writes the report to out.
func run(ctx context.Context, args []string, out io.Writer, log logging.Logger) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	sc, err := scenario.LoadFile(opts.scenario)
	if err != nil {
		return err
	}
	cfg := sc.Config
	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}
	if opts.tick > 0 {
		cfg.Step = opts.tick
	}
	if opts.seedSet {
		cfg.Seed = opts.seed
	}

	tracing := observability.TracingConfigFromEnv()
	tracing.Run = observability.RunInfo{
		Scenario:  sc.Name,
		Algorithm: string(cfg.Routing.Algorithm),
		Seed:      cfg.Seed,
		Nodes:     len(cfg.Satellites) + len(cfg.GroundStations),
	}
	tracingShutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), tracingShutdown, log)

	simOpts := []sim.Option{sim.WithLogger(log)}
	if opts.realtime > 0 {
		simOpts = append(simOpts, sim.WithRealTime(opts.realtime))
	}
	s, err := sim.New(ctx, cfg, simOpts...)
	if err != nil {
		return err
	}

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	unsubscribe := s.Subscribe(collector.Observe)
	defer unsubscribe()

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := sc.Apply(s); err != nil {
		return fmt.Errorf("apply traffic: %w", err)
	}

	log.Info(ctx, "running scenario",
		logging.String("scenario", sc.Name),
		logging.Int("traffic", len(sc.Traffic)),
	)
	runErr := s.Run(ctx)

	rep := newReport(sc.Name, s.Status(), len(s.Contacts()), s.Metrics().Snapshot())
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return runErr
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
