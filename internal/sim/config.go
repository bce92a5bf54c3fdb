package sim

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/signalsfoundry/dtn-constellation-sim/core"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/arq"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/routing"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

var (
	// ErrInvalidConfig wraps every configuration problem found by Validate.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrUnknownNode indicates a reference to a node that is not configured.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode indicates two nodes share an identifier.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrOverlappingContacts indicates two planned windows for the same pair
	// share time.
	ErrOverlappingContacts = errors.New("overlapping contact windows")
)

// Defaults applied by WithDefaults.
const (
	DefaultStep           = 10 * time.Second
	DefaultBufferCapacity = 100 << 20
)

// BufferConfig sizes a node's bundle store.
type BufferConfig struct {
	CapacityBytes int64
	Policy        buffer.Policy
}

// SatelliteConfig describes one satellite. Exactly one of Elements or the
// TLE lines must be set.
type SatelliteConfig struct {
	ID       string
	Elements *core.Elements
	TLELine1 string
	TLELine2 string
	// Buffer overrides the satellite class buffer when set.
	Buffer *BufferConfig
}

// GroundStationConfig describes one ground station.
type GroundStationConfig struct {
	ID              string
	Site            core.Geodetic
	MinElevationDeg float64
	Buffer          *BufferConfig
}

// LinkConfig controls contact rates and transfer reliability.
type LinkConfig struct {
	arq.Config
	// DataRateBps forces a constant rate on every predicted window; zero
	// uses the default link budget.
	DataRateBps float64
	// MaxISLRangeKm limits inter-satellite contacts; zero is unlimited.
	MaxISLRangeKm float64
}

// Config is the complete description of a run.
type Config struct {
	Epoch    time.Time
	Duration time.Duration
	// Step is the scheduler tick.
	Step time.Duration
	// ContactStep is the visibility sampling interval.
	ContactStep time.Duration

	Satellites     []SatelliteConfig
	GroundStations []GroundStationConfig

	Routing routing.Config

	SatelliteBuffer BufferConfig
	GroundBuffer    BufferConfig

	Link LinkConfig

	// Seed drives every random choice in the run.
	Seed uint64
	// Workers bounds prediction parallelism; zero uses GOMAXPROCS.
	Workers int

	// ContactPlan, when non-nil, replaces contact prediction with a fixed
	// list of windows.
	ContactPlan []model.ContactWindow
}

// WithDefaults fills zero values with documented defaults.
func (c Config) WithDefaults() Config {
	if c.Step == 0 {
		c.Step = DefaultStep
	}
	if c.ContactStep == 0 {
		c.ContactStep = core.DefaultContactStep
	}
	if c.SatelliteBuffer.CapacityBytes == 0 {
		c.SatelliteBuffer.CapacityBytes = DefaultBufferCapacity
	}
	if c.GroundBuffer.CapacityBytes == 0 {
		c.GroundBuffer.CapacityBytes = DefaultBufferCapacity
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	c.Routing = c.Routing.WithDefaults()

	gs := make([]GroundStationConfig, len(c.GroundStations))
	copy(gs, c.GroundStations)
	for i := range gs {
		if gs[i].MinElevationDeg == 0 {
			gs[i].MinElevationDeg = core.DefaultMinElevationDeg
		}
	}
	c.GroundStations = gs
	return c
}

// Validate reports every problem at once, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []error
	add := func(err error) { problems = append(problems, err) }

	if c.Epoch.IsZero() {
		add(errors.New("epoch is required"))
	}
	if c.Duration <= 0 {
		add(fmt.Errorf("duration %v must be positive", c.Duration))
	}
	if c.Step <= 0 {
		add(fmt.Errorf("step %v must be positive", c.Step))
	}
	if c.ContactStep <= 0 {
		add(fmt.Errorf("contact step %v must be positive", c.ContactStep))
	}
	if len(c.Satellites)+len(c.GroundStations) == 0 {
		add(errors.New("at least one node is required"))
	}

	ids := make(map[string]struct{})
	checkID := func(id string) {
		if id == "" {
			add(errors.New("node id is required"))
			return
		}
		if _, dup := ids[id]; dup {
			add(fmt.Errorf("%q: %w", id, ErrDuplicateNode))
		}
		ids[id] = struct{}{}
	}

	for _, s := range c.Satellites {
		checkID(s.ID)
		hasTLE := s.TLELine1 != "" || s.TLELine2 != ""
		switch {
		case s.Elements == nil && !hasTLE:
			add(fmt.Errorf("satellite %q: orbital elements or TLE required", s.ID))
		case s.Elements != nil && hasTLE:
			add(fmt.Errorf("satellite %q: both elements and TLE given", s.ID))
		case s.Elements != nil:
			if err := s.Elements.Validate(); err != nil {
				add(fmt.Errorf("satellite %q: %w", s.ID, err))
			}
		}
		if s.Buffer != nil {
			if err := s.Buffer.validate(); err != nil {
				add(fmt.Errorf("satellite %q: %w", s.ID, err))
			}
		}
	}
	for _, g := range c.GroundStations {
		checkID(g.ID)
		if math.IsNaN(g.Site.LatDeg) || g.Site.LatDeg < -90 || g.Site.LatDeg > 90 {
			add(fmt.Errorf("ground station %q: latitude %v out of range", g.ID, g.Site.LatDeg))
		}
		if math.IsNaN(g.Site.LonDeg) || g.Site.LonDeg < -180 || g.Site.LonDeg > 180 {
			add(fmt.Errorf("ground station %q: longitude %v out of range", g.ID, g.Site.LonDeg))
		}
		if g.MinElevationDeg < -90 || g.MinElevationDeg > 90 {
			add(fmt.Errorf("ground station %q: minimum elevation %v out of range", g.ID, g.MinElevationDeg))
		}
		if g.Buffer != nil {
			if err := g.Buffer.validate(); err != nil {
				add(fmt.Errorf("ground station %q: %w", g.ID, err))
			}
		}
	}

	if err := c.SatelliteBuffer.validate(); err != nil {
		add(fmt.Errorf("satellite buffer: %w", err))
	}
	if err := c.GroundBuffer.validate(); err != nil {
		add(fmt.Errorf("ground buffer: %w", err))
	}
	if err := c.Routing.Validate(); err != nil {
		add(err)
	}
	if err := c.Link.Config.Validate(); err != nil {
		add(err)
	}
	if c.Link.DataRateBps < 0 {
		add(fmt.Errorf("data rate %v must not be negative", c.Link.DataRateBps))
	}

	for i, w := range c.ContactPlan {
		if _, ok := ids[w.A]; !ok {
			add(fmt.Errorf("contact %d: %q: %w", i, w.A, ErrUnknownNode))
		}
		if _, ok := ids[w.B]; !ok {
			add(fmt.Errorf("contact %d: %q: %w", i, w.B, ErrUnknownNode))
		}
		if w.A == w.B {
			add(fmt.Errorf("contact %d: node %q contacts itself", i, w.A))
		}
		if !w.Start.Before(w.End) {
			add(fmt.Errorf("contact %d %s-%s: start must precede end", i, w.A, w.B))
		}
	}
	for _, err := range planOverlaps(c.ContactPlan) {
		add(err)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

// planOverlaps reports windows that overlap an earlier window of the same
// node pair. A window opens both directions, so A-B and B-A are one pair.
// Back-to-back windows are allowed.
func planOverlaps(plan []model.ContactWindow) []error {
	byPair := make(map[[2]string][]model.ContactWindow)
	for _, w := range plan {
		a, b := w.A, w.B
		if b < a {
			a, b = b, a
		}
		byPair[[2]string{a, b}] = append(byPair[[2]string{a, b}], w)
	}
	pairs := make([][2]string, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	var errs []error
	for _, p := range pairs {
		ws := byPair[p]
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].Start.Before(ws[j].Start) })
		end := ws[0].End
		for _, w := range ws[1:] {
			if w.Start.Before(end) {
				errs = append(errs, fmt.Errorf("contact %s-%s at %s: %w",
					p[0], p[1], w.Start.Format(time.RFC3339), ErrOverlappingContacts))
			}
			if w.End.After(end) {
				end = w.End
			}
		}
	}
	return errs
}

func (b BufferConfig) validate() error {
	if b.CapacityBytes <= 0 {
		return fmt.Errorf("capacity %d: %w", b.CapacityBytes, buffer.ErrInvalidCapacity)
	}
	if b.Policy < buffer.OldestFirst || b.Policy > buffer.PriorityAware {
		return fmt.Errorf("%v: %w", b.Policy, buffer.ErrUnknownPolicy)
	}
	return nil
}
