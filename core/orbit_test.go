package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func leoElements(epoch time.Time) Elements {
	return Elements{
		SemiMajorAxisKm: 6928,
		Eccentricity:    0.001,
		InclinationDeg:  53,
		RAANDeg:         40,
		ArgPerigeeDeg:   10,
		MeanAnomalyDeg:  0,
		Epoch:           epoch,
	}
}

func TestElementsValidate(t *testing.T) {
	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := leoElements(epoch).Validate(); err != nil {
		t.Fatalf("valid elements rejected: %v", err)
	}

	cases := map[string]func(*Elements){
		"hyperbolic":  func(e *Elements) { e.Eccentricity = 1.2 },
		"negative e":  func(e *Elements) { e.Eccentricity = -0.1 },
		"subsurface":  func(e *Elements) { e.SemiMajorAxisKm = 6000 },
		"low perigee": func(e *Elements) { e.Eccentricity = 0.2 },
		"inclination": func(e *Elements) { e.InclinationDeg = 200 },
		"nan":         func(e *Elements) { e.RAANDeg = math.NaN() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			el := leoElements(epoch)
			mutate(&el)
			if err := el.Validate(); !errors.Is(err, ErrInvalidElements) {
				t.Fatalf("expected ErrInvalidElements, got %v", err)
			}
		})
	}
}

func TestSolveKepler(t *testing.T) {
	for _, ecc := range []float64{0, 0.1, 0.5, 0.9} {
		for _, m := range []float64{0.1, 1, 3, 5, -2} {
			e, _, ok := SolveKepler(m, ecc)
			if !ok {
				t.Fatalf("SolveKepler(%v, %v) did not converge", m, ecc)
			}
			want := math.Mod(m, 2*math.Pi)
			if want < 0 {
				want += 2 * math.Pi
			}
			if got := e - ecc*math.Sin(e); math.Abs(got-want) > 1e-7 {
				t.Fatalf("M residual for e=%v M=%v: got %v want %v", ecc, m, got, want)
			}
		}
	}
}

func TestPropagateKeplerCircularRadius(t *testing.T) {
	el := leoElements(time.Time{})
	el.Eccentricity = 0
	for _, dt := range []time.Duration{0, 7 * time.Minute, 33 * time.Minute, 3 * time.Hour} {
		pos, vel, ok := PropagateKepler(el, dt)
		if !ok {
			t.Fatalf("no convergence at %v", dt)
		}
		if r := pos.Norm(); math.Abs(r-el.SemiMajorAxisKm) > 1e-6 {
			t.Fatalf("radius at %v = %v, want %v", dt, r, el.SemiMajorAxisKm)
		}
		wantV := math.Sqrt(EarthMuKm3s2 / el.SemiMajorAxisKm)
		if v := vel.Norm(); math.Abs(v-wantV) > 1e-6 {
			t.Fatalf("speed at %v = %v, want %v", dt, v, wantV)
		}
		if math.Abs(pos.Dot(vel)) > 1e-3 {
			t.Fatalf("circular velocity should be perpendicular to position at %v", dt)
		}
	}
}

func TestPropagateKeplerPeriodic(t *testing.T) {
	el := leoElements(time.Time{})
	period := el.Period()
	if period < 95*time.Minute || period > 97*time.Minute {
		t.Fatalf("Period = %v, want about 95.7m", period)
	}

	start, _, _ := PropagateKepler(el, 0)
	after, _, _ := PropagateKepler(el, period)
	if d := start.DistanceTo(after); d > 1e-3 {
		t.Fatalf("position after one period differs by %v km", d)
	}
	half, _, _ := PropagateKepler(el, period/2)
	if d := start.DistanceTo(half); d < 2*el.SemiMajorAxisKm*0.99 {
		t.Fatalf("half-period separation %v km, want about one diameter", d)
	}
}

func TestPropagateKeplerInclination(t *testing.T) {
	el := leoElements(time.Time{})
	el.Eccentricity = 0
	maxZ := 0.0
	for i := 0; i < 200; i++ {
		pos, _, _ := PropagateKepler(el, time.Duration(i)*el.Period()/200)
		maxZ = math.Max(maxZ, pos.Z)
	}
	want := el.SemiMajorAxisKm * math.Sin(degToRad(el.InclinationDeg))
	if math.Abs(maxZ-want) > 5 {
		t.Fatalf("max Z = %v, want about %v", maxZ, want)
	}
}
