package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestTLEPropagatorISSAltitude(t *testing.T) {
	p, err := NewTLEPropagator(issLine1, issLine2)
	if err != nil {
		t.Fatalf("NewTLEPropagator: %v", err)
	}

	start := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	var first Vec3
	for i := 0; i < 10; i++ {
		at := start.Add(time.Duration(i) * 10 * time.Minute)
		pos, vel := p.PositionAt(at)
		if i == 0 {
			first = pos
		}
		alt := pos.Norm() - EarthRadiusKm
		if alt < 350 || alt > 460 {
			t.Fatalf("ISS altitude at %v = %.1f km", at, alt)
		}
		if v := vel.Norm(); v < 7.4 || v > 7.9 {
			t.Fatalf("ISS speed at %v = %.3f km/s", at, v)
		}
	}
	later, _ := p.PositionAt(start.Add(5 * time.Minute))
	if first == later {
		t.Fatalf("expected satellite position to change over time")
	}
}

func TestNewTLEPropagatorRejectsShortLines(t *testing.T) {
	if _, err := NewTLEPropagator("1 25544U", issLine2); !errors.Is(err, ErrInvalidTLE) {
		t.Fatalf("expected ErrInvalidTLE, got %v", err)
	}
}

func TestKeplerPropagator(t *testing.T) {
	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewKeplerPropagator("bad", Elements{SemiMajorAxisKm: 100}, nil); !errors.Is(err, ErrInvalidElements) {
		t.Fatalf("expected ErrInvalidElements, got %v", err)
	}

	el := leoElements(epoch)
	p, err := NewKeplerPropagator("sat-1", el, nil)
	if err != nil {
		t.Fatalf("NewKeplerPropagator: %v", err)
	}
	got, _ := p.PositionAt(epoch.Add(20 * time.Minute))
	want, _, _ := PropagateKepler(el, 20*time.Minute)
	if got != want {
		t.Fatalf("PositionAt = %+v, want %+v", got, want)
	}
	if p.NonConverged() != 0 {
		t.Fatalf("NonConverged = %d", p.NonConverged())
	}
}

func TestGroundStationCorotates(t *testing.T) {
	gs := NewGroundStation(Geodetic{LatDeg: 0, LonDeg: 0})
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	p0, v0 := gs.PositionAt(t0)
	p1, _ := gs.PositionAt(t0.Add(6 * time.Hour))
	if math.Abs(p0.Norm()-p1.Norm()) > 1e-9 {
		t.Fatalf("ground station radius changed: %v vs %v", p0.Norm(), p1.Norm())
	}
	if p0.DistanceTo(p1) < 1000 {
		t.Fatalf("inertial position should rotate with the Earth")
	}
	// Equatorial surface speed is about 0.465 km/s.
	if v := v0.Norm(); math.Abs(v-0.465) > 0.01 {
		t.Fatalf("surface speed = %v km/s", v)
	}
	if InertialToFixed(p1, t0.Add(6*time.Hour)).DistanceTo(gs.Fixed()) > 1e-6 {
		t.Fatalf("inertial position does not map back to the fixed site")
	}
}

func TestPropagateAllKeepsOrder(t *testing.T) {
	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var props []Propagator
	for i := 0; i < 12; i++ {
		el := leoElements(epoch)
		el.MeanAnomalyDeg = float64(i * 30)
		p, err := NewKeplerPropagator("sat", el, nil)
		if err != nil {
			t.Fatalf("NewKeplerPropagator: %v", err)
		}
		props = append(props, p)
	}

	at := epoch.Add(time.Hour)
	states, err := PropagateAll(context.Background(), props, at, 4)
	if err != nil {
		t.Fatalf("PropagateAll: %v", err)
	}
	for i, p := range props {
		want, _ := p.PositionAt(at)
		if states[i].Pos != want {
			t.Fatalf("state %d out of order", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := PropagateAll(ctx, props, at, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
