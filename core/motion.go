package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/dtn-constellation-sim/internal/logging"
)

// ErrInvalidTLE indicates TLE lines that go-satellite could not parse.
var ErrInvalidTLE = errors.New("invalid TLE")

// Propagator returns a node's inertial position (km) and velocity (km/s) at
// a simulated instant.
type Propagator interface {
	PositionAt(t time.Time) (pos, vel Vec3)
}

// KeplerPropagator moves a satellite along a two-body orbit.
type KeplerPropagator struct {
	Elements Elements
	log      logging.Logger
	nodeID   string

	nonConverged atomic.Int64
}

// NewKeplerPropagator validates el and returns a propagator for nodeID.
func NewKeplerPropagator(nodeID string, el Elements, log logging.Logger) (*KeplerPropagator, error) {
	if err := el.Validate(); err != nil {
		return nil, fmt.Errorf("satellite %q: %w", nodeID, err)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &KeplerPropagator{Elements: el, log: log, nodeID: nodeID}, nil
}

// PositionAt implements Propagator. Kepler non-convergence is logged and the
// last iterate is used.
func (k *KeplerPropagator) PositionAt(t time.Time) (Vec3, Vec3) {
	pos, vel, converged := PropagateKepler(k.Elements, t.Sub(k.Elements.Epoch))
	if !converged {
		k.nonConverged.Add(1)
		k.log.Warn(context.Background(), "kepler solver did not converge; using last iterate",
			logging.String("node_id", k.nodeID),
			logging.Time("sim_time", t),
			logging.Float64("eccentricity", k.Elements.Eccentricity),
		)
	}
	return pos, vel
}

// NonConverged returns how many propagations fell back to the last iterate.
func (k *KeplerPropagator) NonConverged() int64 {
	return k.nonConverged.Load()
}

// TLEPropagator uses SGP4 via go-satellite.
type TLEPropagator struct {
	sat satellite.Satellite
}

// NewTLEPropagator constructs a propagator from two TLE lines.
func NewTLEPropagator(line1, line2 string) (p *TLEPropagator, err error) {
	if len(line1) < 69 || len(line2) < 69 {
		return nil, fmt.Errorf("TLE lines must be 69 characters: %w", ErrInvalidTLE)
	}
	// go-satellite panics on malformed numeric fields.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%v: %w", r, ErrInvalidTLE)
		}
	}()
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &TLEPropagator{sat: sat}, nil
}

// PositionAt implements Propagator.
func (p *TLEPropagator) PositionAt(t time.Time) (Vec3, Vec3) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	return Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}, Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
}

// GroundStation is a fixed site on the rotating Earth.
type GroundStation struct {
	Site  Geodetic
	fixed Vec3
}

// NewGroundStation precomputes the Earth-fixed position of site.
func NewGroundStation(site Geodetic) *GroundStation {
	return &GroundStation{Site: site, fixed: GeodeticToFixed(site)}
}

// Fixed returns the Earth-fixed position of the station.
func (g *GroundStation) Fixed() Vec3 {
	return g.fixed
}

// PositionAt implements Propagator by rotating the fixed site into the
// inertial frame.
func (g *GroundStation) PositionAt(t time.Time) (Vec3, Vec3) {
	pos := FixedToInertial(g.fixed, t)
	// Velocity of a point co-rotating with the Earth.
	const earthRotationRadPerSec = 7.2921150e-5
	vel := Vec3{X: -earthRotationRadPerSec * pos.Y, Y: earthRotationRadPerSec * pos.X}
	return pos, vel
}

// State is one propagated sample.
type State struct {
	Pos, Vel Vec3
}

// PropagateAll propagates every propagator to t using up to workers
// goroutines. Results keep the input order.
func PropagateAll(ctx context.Context, props []Propagator, t time.Time, workers int) ([]State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]State, len(props))
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pos, vel := props[i].PositionAt(t)
				out[i] = State{Pos: pos, Vel: vel}
			}
		}()
	}

	var err error
feed:
	for i := range props {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}
