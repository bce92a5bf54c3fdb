// Package scenario reads YAML scenario files into a simulation config and a
// traffic plan.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/dtn-constellation-sim/core"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/arq"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/buffer"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/routing"
	"github.com/signalsfoundry/dtn-constellation-sim/internal/sim"
	"github.com/signalsfoundry/dtn-constellation-sim/model"
)

// ErrInvalidScenario wraps structural problems in a scenario document.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a loaded run description.
type Scenario struct {
	Name    string
	Config  sim.Config
	Traffic []Injection
}

// Injection is one planned bundle.
type Injection struct {
	Source      string
	Destination string
	SizeBytes   int
	Priority    model.Priority
	// At is the creation time of the bundle.
	At  time.Time
	TTL time.Duration
}

// Document shapes stay unexported so the file format can evolve apart from
// sim.Config.
type scenarioYAML struct {
	Name        string        `yaml:"name"`
	Epoch       time.Time     `yaml:"epoch"`
	Duration    time.Duration `yaml:"duration"`
	Step        time.Duration `yaml:"step"`
	ContactStep time.Duration `yaml:"contact_step"`
	Seed        uint64        `yaml:"seed"`
	Workers     int           `yaml:"workers"`

	Routing routingYAML `yaml:"routing"`
	Buffers struct {
		Satellite bufferYAML `yaml:"satellite"`
		Ground    bufferYAML `yaml:"ground"`
	} `yaml:"buffers"`
	Link linkYAML `yaml:"link"`

	Satellites     []satelliteYAML     `yaml:"satellites"`
	GroundStations []groundStationYAML `yaml:"ground_stations"`
	ContactPlan    []contactYAML       `yaml:"contact_plan"`

	Traffic struct {
		Bundles    []bundleYAML    `yaml:"bundles"`
		Generators []generatorYAML `yaml:"generators"`
	} `yaml:"traffic"`
}

type routingYAML struct {
	Algorithm   string `yaml:"algorithm"`
	SprayCopies int    `yaml:"spray_copies"`
	Prophet     struct {
		PEncounter float64       `yaml:"p_encounter"`
		Gamma      float64       `yaml:"gamma"`
		Beta       float64       `yaml:"beta"`
		AgingUnit  time.Duration `yaml:"aging_unit"`
	} `yaml:"prophet"`
}

type bufferYAML struct {
	CapacityBytes int64  `yaml:"capacity_bytes"`
	Policy        string `yaml:"policy"`
}

type linkYAML struct {
	DataRateBps        float64 `yaml:"data_rate_bps"`
	LossProbability    float64 `yaml:"loss_probability"`
	MaxRetransmissions int     `yaml:"max_retransmissions"`
	MaxISLRangeKm      float64 `yaml:"max_isl_range_km"`
}

type elementsYAML struct {
	SemiMajorAxisKm float64   `yaml:"semi_major_axis_km"`
	Eccentricity    float64   `yaml:"eccentricity"`
	InclinationDeg  float64   `yaml:"inclination_deg"`
	RAANDeg         float64   `yaml:"raan_deg"`
	ArgPerigeeDeg   float64   `yaml:"arg_perigee_deg"`
	MeanAnomalyDeg  float64   `yaml:"mean_anomaly_deg"`
	Epoch           time.Time `yaml:"epoch"`
}

type satelliteYAML struct {
	ID       string        `yaml:"id"`
	Elements *elementsYAML `yaml:"elements"`
	TLE      []string      `yaml:"tle"`
	Buffer   *bufferYAML   `yaml:"buffer"`
}

type groundStationYAML struct {
	ID              string      `yaml:"id"`
	LatDeg          float64     `yaml:"lat_deg"`
	LonDeg          float64     `yaml:"lon_deg"`
	AltKm           float64     `yaml:"alt_km"`
	MinElevationDeg float64     `yaml:"min_elevation_deg"`
	Buffer          *bufferYAML `yaml:"buffer"`
}

// Contact plan entries are offsets from the scenario epoch.
type contactYAML struct {
	A       string        `yaml:"a"`
	B       string        `yaml:"b"`
	Start   time.Duration `yaml:"start"`
	End     time.Duration `yaml:"end"`
	RateBps float64       `yaml:"rate_bps"`
}

type bundleYAML struct {
	Source      string        `yaml:"source"`
	Destination string        `yaml:"destination"`
	SizeBytes   int           `yaml:"size_bytes"`
	Priority    string        `yaml:"priority"`
	At          time.Duration `yaml:"at"`
	TTL         time.Duration `yaml:"ttl"`
}

type generatorYAML struct {
	Source      string        `yaml:"source"`
	Destination string        `yaml:"destination"`
	SizeBytes   int           `yaml:"size_bytes"`
	Priority    string        `yaml:"priority"`
	TTL         time.Duration `yaml:"ttl"`
	Start       time.Duration `yaml:"start"`
	Interval    time.Duration `yaml:"interval"`
	// Count caps the number of bundles; zero runs until Until.
	Count int `yaml:"count"`
	// Until defaults to the scenario duration.
	Until time.Duration `yaml:"until"`
}

// LoadFile reads and decodes the scenario at path.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML scenario from r. Unknown keys are rejected. The
// resulting sim.Config is not validated here; sim.New does that.
func Load(r io.Reader) (*Scenario, error) {
	var doc scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	cfg, err := doc.config()
	if err != nil {
		return nil, err
	}
	traffic, err := doc.traffic()
	if err != nil {
		return nil, err
	}
	return &Scenario{Name: doc.Name, Config: cfg, Traffic: traffic}, nil
}

func (d *scenarioYAML) config() (sim.Config, error) {
	var alg routing.Algorithm
	if d.Routing.Algorithm != "" {
		parsed, err := routing.ParseAlgorithm(d.Routing.Algorithm)
		if err != nil {
			return sim.Config{}, fmt.Errorf("%w: routing: %w", ErrInvalidScenario, err)
		}
		alg = parsed
	}
	satBuf, err := d.Buffers.Satellite.toConfig()
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: satellite buffer: %w", ErrInvalidScenario, err)
	}
	gsBuf, err := d.Buffers.Ground.toConfig()
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: ground buffer: %w", ErrInvalidScenario, err)
	}

	cfg := sim.Config{
		Epoch:       d.Epoch,
		Duration:    d.Duration,
		Step:        d.Step,
		ContactStep: d.ContactStep,
		Seed:        d.Seed,
		Workers:     d.Workers,
		Routing: routing.Config{
			Algorithm:   alg,
			SprayCopies: d.Routing.SprayCopies,
			Prophet: routing.ProphetParams{
				PEncounter: d.Routing.Prophet.PEncounter,
				Gamma:      d.Routing.Prophet.Gamma,
				Beta:       d.Routing.Prophet.Beta,
				AgingUnit:  d.Routing.Prophet.AgingUnit,
			},
		},
		SatelliteBuffer: satBuf,
		GroundBuffer:    gsBuf,
		Link: sim.LinkConfig{
			Config: arq.Config{
				LossProbability:    d.Link.LossProbability,
				MaxRetransmissions: d.Link.MaxRetransmissions,
			},
			DataRateBps:   d.Link.DataRateBps,
			MaxISLRangeKm: d.Link.MaxISLRangeKm,
		},
	}

	for i, s := range d.Satellites {
		sc := sim.SatelliteConfig{ID: s.ID}
		if s.Elements != nil {
			el := core.Elements{
				SemiMajorAxisKm: s.Elements.SemiMajorAxisKm,
				Eccentricity:    s.Elements.Eccentricity,
				InclinationDeg:  s.Elements.InclinationDeg,
				RAANDeg:         s.Elements.RAANDeg,
				ArgPerigeeDeg:   s.Elements.ArgPerigeeDeg,
				MeanAnomalyDeg:  s.Elements.MeanAnomalyDeg,
				Epoch:           s.Elements.Epoch,
			}
			if el.Epoch.IsZero() {
				el.Epoch = d.Epoch
			}
			sc.Elements = &el
		}
		switch len(s.TLE) {
		case 0:
		case 2:
			sc.TLELine1, sc.TLELine2 = s.TLE[0], s.TLE[1]
		default:
			return sim.Config{}, fmt.Errorf("%w: satellite %d (%q): tle needs exactly two lines", ErrInvalidScenario, i, s.ID)
		}
		if s.Buffer != nil {
			bc, err := s.Buffer.toConfig()
			if err != nil {
				return sim.Config{}, fmt.Errorf("%w: satellite %q buffer: %w", ErrInvalidScenario, s.ID, err)
			}
			sc.Buffer = &bc
		}
		cfg.Satellites = append(cfg.Satellites, sc)
	}

	for _, g := range d.GroundStations {
		gc := sim.GroundStationConfig{
			ID:              g.ID,
			Site:            core.Geodetic{LatDeg: g.LatDeg, LonDeg: g.LonDeg, AltKm: g.AltKm},
			MinElevationDeg: g.MinElevationDeg,
		}
		if g.Buffer != nil {
			bc, err := g.Buffer.toConfig()
			if err != nil {
				return sim.Config{}, fmt.Errorf("%w: ground station %q buffer: %w", ErrInvalidScenario, g.ID, err)
			}
			gc.Buffer = &bc
		}
		cfg.GroundStations = append(cfg.GroundStations, gc)
	}

	if d.ContactPlan != nil {
		cfg.ContactPlan = make([]model.ContactWindow, 0, len(d.ContactPlan))
		for i, c := range d.ContactPlan {
			if c.A == "" || c.B == "" {
				return sim.Config{}, fmt.Errorf("%w: contact %d: both endpoints required", ErrInvalidScenario, i)
			}
			if c.End <= c.Start {
				return sim.Config{}, fmt.Errorf("%w: contact %d (%s-%s): end must follow start", ErrInvalidScenario, i, c.A, c.B)
			}
			cfg.ContactPlan = append(cfg.ContactPlan, model.ContactWindow{
				A:           c.A,
				B:           c.B,
				Start:       d.Epoch.Add(c.Start),
				End:         d.Epoch.Add(c.End),
				DataRateBps: c.RateBps,
			})
		}
	}
	return cfg, nil
}

func (b bufferYAML) toConfig() (sim.BufferConfig, error) {
	p, err := buffer.ParsePolicy(b.Policy)
	if err != nil {
		return sim.BufferConfig{}, err
	}
	return sim.BufferConfig{CapacityBytes: b.CapacityBytes, Policy: p}, nil
}

func (d *scenarioYAML) traffic() ([]Injection, error) {
	var out []Injection
	for i, b := range d.Traffic.Bundles {
		prio, err := model.ParsePriority(b.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: bundle %d: %w", ErrInvalidScenario, i, err)
		}
		if b.SizeBytes < 0 {
			return nil, fmt.Errorf("%w: bundle %d: size_bytes %d must not be negative", ErrInvalidScenario, i, b.SizeBytes)
		}
		out = append(out, Injection{
			Source:      b.Source,
			Destination: b.Destination,
			SizeBytes:   b.SizeBytes,
			Priority:    prio,
			At:          d.Epoch.Add(b.At),
			TTL:         b.TTL,
		})
	}

	for i, g := range d.Traffic.Generators {
		prio, err := model.ParsePriority(g.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: generator %d: %w", ErrInvalidScenario, i, err)
		}
		if g.SizeBytes < 0 {
			return nil, fmt.Errorf("%w: generator %d: size_bytes %d must not be negative", ErrInvalidScenario, i, g.SizeBytes)
		}
		if g.Interval <= 0 {
			return nil, fmt.Errorf("%w: generator %d: interval must be positive", ErrInvalidScenario, i)
		}
		until := g.Until
		if until == 0 {
			until = d.Duration
		}
		for n, at := 0, g.Start; at < until; n, at = n+1, at+g.Interval {
			if g.Count > 0 && n >= g.Count {
				break
			}
			out = append(out, Injection{
				Source:      g.Source,
				Destination: g.Destination,
				SizeBytes:   g.SizeBytes,
				Priority:    prio,
				At:          d.Epoch.Add(at),
				TTL:         g.TTL,
			})
		}
	}
	return out, nil
}

// Apply mints and injects every planned bundle into s. It stops at the
// first rejected injection.
func (sc *Scenario) Apply(s *sim.Scheduler) error {
	for i, inj := range sc.Traffic {
		if inj.SizeBytes < 0 {
			return fmt.Errorf("%w: traffic %d: size %d must not be negative", ErrInvalidScenario, i, inj.SizeBytes)
		}
		b, err := s.NewBundleAt(inj.Source, inj.Destination, make([]byte, inj.SizeBytes), inj.Priority, inj.At, inj.TTL)
		if err != nil {
			return fmt.Errorf("traffic %d: %w", i, err)
		}
		if err := s.Inject(b); err != nil {
			return fmt.Errorf("traffic %d: %w", i, err)
		}
	}
	return nil
}
