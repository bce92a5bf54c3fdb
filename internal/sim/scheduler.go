// Package sim runs the discrete-event DTN simulation: it owns simulated
// time, the nodes, the contact plan, and the per-tick forwarding loop.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/dtn-constellation-sim/core"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/arq"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/logging"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/metrics"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/routing"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
	"github.com/signalsfoundry/dtn-constellation-sim/timectrl"
)

const tracerName = "github.com/signalsfoundry/dtn-constellation-sim/internal/sim"

var (
	// ErrInvalidState indicates an operation not allowed in the current state.
	ErrInvalidState = errors.New("invalid scheduler state")
	// ErrCompleted indicates the run has finished or was stopped.
	ErrCompleted = errors.New("simulation completed")
)

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Counts are running totals maintained by the scheduler.
type Counts struct {
	Generated      int64
	Transferred    int64
	Delivered      int64
	Expired        int64
	Dropped        int64
	FailedTransfer int64
	// Queued counts injected bundles waiting for their creation time.
	Queued int
	// Buffered counts bundles resident across all nodes.
	Buffered       int
	ActiveContacts int
}

// Status is returned by Scheduler.Status.
type Status struct {
	State   State
	SimTime time.Time
	Elapsed time.Duration
	Ticks   int64
	Counts  Counts
}

// Option customises Scheduler construction.
type Option func(*Scheduler)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracer overrides the tracer used for run and prediction spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRateModel overrides the data-rate model used for predicted windows.
func WithRateModel(m core.RateModel) Option {
	return func(s *Scheduler) { s.rate = m }
}

// WithRealTime paces Run against the wall clock at the given speed-up.
func WithRealTime(speed float64) Option {
	return func(s *Scheduler) {
		s.realTime = true
		s.speed = speed
	}
}

type activeContact struct {
	window   model.ContactWindow
	sessions [2]*arq.Session
}

// Scheduler drives one simulation run. All node state is mutated only while
// mu is held, one tick at a time. Events are published after each tick,
// outside the lock.
type Scheduler struct {
	mu sync.Mutex

	cfg   Config
	state State
	clock *timectrl.TimeController
	ticks int64

	nodes map[string]*Node
	order []string

	contacts    []model.ContactWindow
	nextContact int
	active      []*activeContact

	link    *arq.Link
	factory *model.BundleFactory
	queued  []*model.Bundle
	arrived map[uint64]struct{}

	counts  Counts
	now     time.Time
	pending []model.Event

	subMu   sync.RWMutex
	subs    map[int]func(model.Event)
	nextSub int

	collector *metrics.Collector

	log      logging.Logger
	tracer   trace.Tracer
	rate     core.RateModel
	realTime bool
	speed    float64
}

// New validates cfg, builds the nodes and computes the contact plan. The
// scheduler starts Idle.
func New(ctx context.Context, cfg Config, opts ...Option) (*Scheduler, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:       cfg,
		state:     StateIdle,
		nodes:     make(map[string]*Node),
		factory:   model.NewBundleFactory(),
		arrived:   make(map[uint64]struct{}),
		subs:      make(map[int]func(model.Event)),
		collector: metrics.NewCollector(),
		log:       logging.Noop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	ctx, s.log = logging.WithRunLogger(ctx, s.log)

	mode := timectrl.Accelerated
	if s.realTime {
		mode = timectrl.RealTime
	}
	s.clock = timectrl.NewTimeController(cfg.Epoch, cfg.Step, mode)
	s.clock.Speed = s.speed
	s.now = cfg.Epoch

	link, err := arq.New(cfg.Link.Config, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.link = link

	if err := s.buildNodes(); err != nil {
		return nil, err
	}
	if err := s.planContacts(ctx); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "simulation ready",
		logging.Int("nodes", len(s.nodes)),
		logging.Int("contacts", len(s.contacts)),
		logging.String("routing", string(cfg.Routing.Algorithm)),
		logging.Time("epoch", cfg.Epoch),
		logging.Duration("duration", cfg.Duration),
		logging.Duration("step", cfg.Step),
	)
	return s, nil
}

func (s *Scheduler) buildNodes() error {
	cfg := s.cfg
	add := func(n *Node, bc BufferConfig) error {
		id := n.ID
		var err error
		n.Buffer, err = buffer.New(bc.CapacityBytes, bc.Policy,
			buffer.WithSeed(cfg.Seed^nodeSeed(id)),
			buffer.WithLogger(s.log.With(logging.String("node_id", id))),
			buffer.WithDropHandler(func(b *model.Bundle, reason buffer.DropReason) {
				s.counts.Dropped++
				ev := model.BundleEvent(model.EventDropped, s.now, id, b)
				ev.Reason = string(reason)
				s.emit(ev)
			}),
			buffer.WithExpiryHandler(func(b *model.Bundle) {
				s.counts.Expired++
				s.emit(model.BundleEvent(model.EventExpired, s.now, id, b))
			}),
		)
		if err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidConfig, id, err)
		}
		n.Router, err = routing.New(cfg.Routing, id)
		if err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidConfig, id, err)
		}
		n.delivered = make(map[string]struct{})
		s.nodes[id] = n
		s.order = append(s.order, id)
		return nil
	}

	for _, sc := range cfg.Satellites {
		n := &Node{ID: sc.ID, Role: model.RoleSatellite}
		if sc.Elements != nil {
			p, err := core.NewKeplerPropagator(sc.ID, *sc.Elements, s.log)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			n.Propagator = p
		} else {
			p, err := core.NewTLEPropagator(sc.TLELine1, sc.TLELine2)
			if err != nil {
				return fmt.Errorf("%w: satellite %q: %w", ErrInvalidConfig, sc.ID, err)
			}
			n.Propagator = p
		}
		bc := cfg.SatelliteBuffer
		if sc.Buffer != nil {
			bc = *sc.Buffer
		}
		if err := add(n, bc); err != nil {
			return err
		}
	}
	for _, gc := range cfg.GroundStations {
		n := &Node{
			ID:              gc.ID,
			Role:            model.RoleGroundStation,
			Propagator:      core.NewGroundStation(gc.Site),
			MinElevationDeg: gc.MinElevationDeg,
		}
		bc := cfg.GroundBuffer
		if gc.Buffer != nil {
			bc = *gc.Buffer
		}
		if err := add(n, bc); err != nil {
			return err
		}
	}
	sort.Strings(s.order)
	return nil
}

func (s *Scheduler) planContacts(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "sim.PredictContacts",
		trace.WithAttributes(
			attribute.Int("nodes", len(s.order)),
			attribute.Int64("duration_seconds", int64(s.cfg.Duration/time.Second)),
		))
	defer span.End()

	if s.cfg.ContactPlan != nil {
		s.contacts = append([]model.ContactWindow(nil), s.cfg.ContactPlan...)
		core.SortWindows(s.contacts)
		span.SetAttributes(attribute.Bool("contact_plan", true), attribute.Int("windows", len(s.contacts)))
		return nil
	}

	rate := s.rate
	if rate == nil && s.cfg.Link.DataRateBps > 0 {
		rate = core.ConstantRate(s.cfg.Link.DataRateBps)
	}
	predictor := core.NewContactPredictor(rate, s.log)
	predictor.Step = s.cfg.ContactStep
	predictor.MaxISLRangeKm = s.cfg.Link.MaxISLRangeKm

	endpoints := make([]core.Endpoint, 0, len(s.order))
	for _, id := range s.order {
		endpoints = append(endpoints, s.nodes[id].endpoint())
	}

	started := time.Now()
	windows, err := predictor.PredictAll(ctx, endpoints, s.cfg.Epoch, s.cfg.Epoch.Add(s.cfg.Duration), s.cfg.Workers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("predict contacts: %w", err)
	}
	s.contacts = windows
	span.SetAttributes(attribute.Int("windows", len(windows)))
	s.log.Debug(ctx, "contact plan predicted",
		logging.Int("windows", len(windows)),
		logging.Duration("took", time.Since(started)),
	)
	return nil
}

// nodeSeed derives a stable per-node seed (FNV-1a).
func nodeSeed(id string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}

// Run advances the simulation until it completes, is paused or is stopped.
// Cancelling ctx stops the run. Run returns nil when the run completes or
// pauses.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateCompleted:
		s.mu.Unlock()
		return ErrCompleted
	case StateRunning:
		s.mu.Unlock()
		return fmt.Errorf("run: already running: %w", ErrInvalidState)
	}
	s.state = StateRunning
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sim.Run",
		trace.WithAttributes(
			attribute.Int("nodes", len(s.order)),
			attribute.Int("contacts", len(s.contacts)),
			attribute.String("routing", string(s.cfg.Routing.Algorithm)),
		))
	defer span.End()
	s.log.Info(ctx, "simulation running", logging.Time("sim_time", s.clock.Now()))

	for {
		if err := ctx.Err(); err != nil {
			s.Stop()
			span.RecordError(err)
			return err
		}

		s.mu.Lock()
		if s.state != StateRunning {
			st := s.state
			s.mu.Unlock()
			span.SetAttributes(attribute.String("final_state", st.String()))
			return nil
		}
		s.tick(ctx)
		events := s.drain()
		done := s.state == StateCompleted
		s.mu.Unlock()

		s.publish(events)
		if done {
			snap := s.collector.Snapshot()
			span.SetAttributes(
				attribute.String("final_state", StateCompleted.String()),
				attribute.Float64("delivery_ratio", snap.DeliveryRatio),
			)
			s.log.Info(ctx, "simulation completed",
				logging.Int64("generated", snap.Generated),
				logging.Int64("delivered", snap.Delivered),
				logging.Float64("delivery_ratio", snap.DeliveryRatio),
			)
			return nil
		}
		if err := s.clock.Pace(ctx); err != nil {
			s.Stop()
			return err
		}
	}
}

// Step runs exactly one tick. It is allowed while Idle or Paused.
func (s *Scheduler) Step(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateCompleted:
		s.mu.Unlock()
		return ErrCompleted
	case StateRunning:
		s.mu.Unlock()
		return fmt.Errorf("step while running: %w", ErrInvalidState)
	}
	s.tick(ctx)
	events := s.drain()
	s.mu.Unlock()

	s.publish(events)
	return nil
}

// Pause suspends a running simulation after the current tick.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return fmt.Errorf("pause from %s: %w", s.state, ErrInvalidState)
	}
	s.state = StatePaused
	return nil
}

// Resume continues a paused simulation; it blocks like Run.
func (s *Scheduler) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePaused {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("resume from %s: %w", st, ErrInvalidState)
	}
	s.mu.Unlock()
	return s.Run(ctx)
}

// Stop moves the scheduler to Completed from any state. No further events
// are processed. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return
	}
	s.state = StateCompleted
	s.log.Info(context.Background(), "simulation stopped", logging.Time("sim_time", s.clock.Now()))
}

// Status reports the lifecycle state, simulated time and running counts.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counts
	c.Queued = len(s.queued)
	c.ActiveContacts = len(s.active)
	for _, n := range s.nodes {
		c.Buffered += n.Buffer.Len()
	}
	return Status{
		State:   s.state,
		SimTime: s.clock.Now(),
		Elapsed: s.clock.Elapsed(),
		Ticks:   s.ticks,
		Counts:  c,
	}
}

// Metrics returns the run's metrics collector.
func (s *Scheduler) Metrics() *metrics.Collector { return s.collector }

// Contacts returns a copy of the contact plan.
func (s *Scheduler) Contacts() []model.ContactWindow {
	return append([]model.ContactWindow(nil), s.contacts...)
}

// NodeIDs returns the node identifiers in iteration order.
func (s *Scheduler) NodeIDs() []string {
	return append([]string(nil), s.order...)
}

// Node returns the node with id.
func (s *Scheduler) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Positions propagates every node to the current simulated time. Results
// are inertial and keyed by node ID.
func (s *Scheduler) Positions(ctx context.Context) (map[string]core.State, error) {
	s.mu.Lock()
	at := s.clock.Now()
	s.mu.Unlock()

	props := make([]core.Propagator, len(s.order))
	for i, id := range s.order {
		props[i] = s.nodes[id].Propagator
	}
	states, err := core.PropagateAll(ctx, props, at, s.cfg.Workers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.State, len(states))
	for i, id := range s.order {
		out[id] = states[i]
	}
	return out, nil
}

// Subscribe registers fn for every event. Events arrive in order after each
// tick on the goroutine driving the scheduler. The returned function
// unsubscribes.
func (s *Scheduler) Subscribe(fn func(model.Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// NewBundle mints a bundle created at the current simulated time, carrying
// the routing algorithm's initial copy budget.
func (s *Scheduler) NewBundle(src, dst string, payload []byte, prio model.Priority, ttl time.Duration) (*model.Bundle, error) {
	return s.factory.NewBundle(src, dst, payload, prio, s.clock.Now(), ttl, s.cfg.Routing.InitialCopies())
}

// NewBundleAt mints a bundle created at at; Inject queues it until then.
func (s *Scheduler) NewBundleAt(src, dst string, payload []byte, prio model.Priority, at time.Time, ttl time.Duration) (*model.Bundle, error) {
	return s.factory.NewBundle(src, dst, payload, prio, at, ttl, s.cfg.Routing.InitialCopies())
}

// Inject hands a bundle to its source node. A bundle created in the future
// is held until the clock reaches its creation time.
func (s *Scheduler) Inject(b *model.Bundle) error {
	if b == nil {
		return fmt.Errorf("inject nil bundle: %w", model.ErrInvalidBundle)
	}
	if b.TTL <= 0 {
		return fmt.Errorf("inject %s: %w", b.Key(), model.ErrInvalidTTL)
	}

	s.mu.Lock()
	if s.state == StateCompleted {
		s.mu.Unlock()
		return ErrCompleted
	}
	if _, ok := s.nodes[b.Source]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("inject source %q: %w", b.Source, ErrUnknownNode)
	}
	if _, ok := s.nodes[b.Destination]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("inject destination %q: %w", b.Destination, ErrUnknownNode)
	}
	if b.Source == b.Destination {
		s.mu.Unlock()
		return fmt.Errorf("inject %s: source equals destination: %w", b.Key(), model.ErrInvalidBundle)
	}
	if b.CopyID == 0 {
		b.CopyID = s.factory.NextCopyID()
	}
	if b.Copies < 1 {
		b.Copies = s.cfg.Routing.InitialCopies()
	}

	if b.CreatedAt.After(s.clock.Now()) {
		s.enqueue(b)
		s.mu.Unlock()
		return nil
	}
	s.now = s.clock.Now()
	s.admit(b)
	events := s.drain()
	s.mu.Unlock()

	s.publish(events)
	return nil
}

func (s *Scheduler) enqueue(b *model.Bundle) {
	i := sort.Search(len(s.queued), func(i int) bool {
		return s.queued[i].CreatedAt.After(b.CreatedAt)
	})
	s.queued = append(s.queued, nil)
	copy(s.queued[i+1:], s.queued[i:])
	s.queued[i] = b
}

// admit records generation and stores b at its source. mu must be held.
func (s *Scheduler) admit(b *model.Bundle) {
	s.counts.Generated++
	s.emit(model.BundleEvent(model.EventGenerated, s.now, b.Source, b))
	s.nodes[b.Source].Buffer.Store(s.now, b)
}

// tick runs one scheduler step. mu must be held.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	horizon := now.Add(s.cfg.Step)
	s.now = now
	clear(s.arrived)

	for len(s.queued) > 0 && !s.queued[0].CreatedAt.After(now) {
		b := s.queued[0]
		s.queued[0] = nil
		s.queued = s.queued[1:]
		s.admit(b)
	}

	s.activateContacts(now, horizon)

	for _, ac := range s.active {
		for dir := 0; dir < 2; dir++ {
			s.exchange(ctx, ac, dir, now, horizon)
		}
	}

	s.retireContacts(now, horizon)

	next := s.clock.Advance()
	s.now = next
	s.ticks++
	util := make(map[string]float64, len(s.order))
	for _, id := range s.order {
		n := s.nodes[id]
		n.Buffer.EvictExpired(next)
		util[id] = n.Buffer.Utilization()
	}
	s.emit(model.Event{Kind: model.EventTick, Time: next, Utilization: util, ActiveContacts: len(s.active)})

	if s.clock.Elapsed() >= s.cfg.Duration {
		s.state = StateCompleted
	}
}

// activateContacts starts every window overlapping [now, horizon) and runs
// the routing encounter for both endpoints.
func (s *Scheduler) activateContacts(now, horizon time.Time) {
	for s.nextContact < len(s.contacts) && s.contacts[s.nextContact].Start.Before(horizon) {
		w := s.contacts[s.nextContact]
		s.nextContact++
		if !w.Overlaps(now, horizon) {
			continue
		}
		a, b := s.nodes[w.A], s.nodes[w.B]
		ac := &activeContact{
			window: w,
			sessions: [2]*arq.Session{
				arq.NewSession(w, w.A, w.B),
				arq.NewSession(w, w.B, w.A),
			},
		}
		s.active = append(s.active, ac)

		ev := model.Event{Kind: model.EventContactStarted, Time: w.Start, Node: w.A, Peer: w.B}
		s.emit(ev)

		sa, sb := a.Summary(now), b.Summary(now)
		for _, p := range a.Router.Encounter(now, a.Buffer, sb) {
			s.log.Debug(context.Background(), "purged delivered bundle",
				logging.String("node_id", a.ID), logging.String("bundle_id", p.Key()))
		}
		for _, p := range b.Router.Encounter(now, b.Buffer, sa) {
			s.log.Debug(context.Background(), "purged delivered bundle",
				logging.String("node_id", b.ID), logging.String("bundle_id", p.Key()))
		}
	}
}

func (s *Scheduler) retireContacts(now, horizon time.Time) {
	kept := s.active[:0]
	for _, ac := range s.active {
		if ac.window.End.After(horizon) {
			kept = append(kept, ac)
			continue
		}
		s.emit(model.Event{Kind: model.EventContactEnded, Time: ac.window.End, Node: ac.window.A, Peer: ac.window.B})
	}
	for i := len(kept); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = kept
}

// exchange offers bundles over one direction of an active contact.
func (s *Scheduler) exchange(ctx context.Context, ac *activeContact, dir int, now, horizon time.Time) {
	session := ac.sessions[dir]
	from, to := s.nodes[session.From], s.nodes[session.To]

	remote := to.Summary(now)
	offers := from.Router.SelectForContact(now, from.Buffer, ac.window, remote)
	for _, o := range offers {
		if session.Busy(horizon) {
			return
		}
		b := o.Bundle
		if _, fresh := s.arrived[b.CopyID]; fresh {
			continue
		}
		if _, ok := from.Buffer.Get(b.Key()); !ok || b.IsExpired(now) {
			continue
		}

		res := s.link.Transfer(session, now, b)
		if !res.Delivered {
			if res.Attempts == 0 && (res.Reason == arq.ReasonInsufficientWindow || res.Reason == arq.ReasonExpiresInTransit) {
				continue
			}
			s.counts.FailedTransfer++
			ev := model.BundleEvent(model.EventTransferFailed, res.End, from.ID, b)
			ev.Peer, ev.Reason, ev.Attempts = to.ID, string(res.Reason), res.Attempts
			s.emit(ev)
			if res.Reason == arq.ReasonWindowClosed || res.Reason == arq.ReasonZeroRate {
				return
			}
			continue
		}

		s.counts.Transferred++
		ev := model.BundleEvent(model.EventTransferred, res.End, from.ID, b)
		ev.Peer, ev.Attempts = to.ID, res.Attempts
		s.emit(ev)

		accepted := true
		if to.ID == b.Destination {
			s.deliver(to, b, res.End)
		} else {
			replica := b.Replicate(s.factory.NextCopyID(), o.Copies, res.End)
			if o.Handoff {
				replica.Custody = b.Custody
			}
			accepted = to.Buffer.Store(res.End, replica)
			if accepted {
				s.arrived[replica.CopyID] = struct{}{}
			}
		}
		if !accepted {
			continue
		}
		from.Router.Committed(now, o, to.ID)
		if o.Handoff {
			from.Buffer.Remove(b.CopyID)
		}
	}
}

func (s *Scheduler) deliver(n *Node, b *model.Bundle, at time.Time) {
	ev := model.BundleEvent(model.EventDelivered, at, n.ID, b)
	ev.Delay = at.Sub(b.CreatedAt)
	if _, dup := n.delivered[b.Key()]; !dup {
		n.delivered[b.Key()] = struct{}{}
		s.counts.Delivered++
	}
	s.emit(ev)
}

// emit buffers an event for publication after the tick. mu must be held.
func (s *Scheduler) emit(e model.Event) {
	s.pending = append(s.pending, e)
}

func (s *Scheduler) drain() []model.Event {
	out := s.pending
	s.pending = nil
	return out
}

func (s *Scheduler) publish(events []model.Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(model.Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.RUnlock()

	for _, e := range events {
		s.collector.Observe(e)
		for _, fn := range fns {
			fn(e)
		}
	}
}
