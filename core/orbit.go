package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthMuKm3s2 is the standard gravitational parameter of the Earth.
const EarthMuKm3s2 = 398600.4418

const (
	keplerTolerance     = 1e-8
	keplerMaxIterations = 30
)

// ErrInvalidElements indicates a Keplerian element set that cannot describe
// a closed orbit above the Earth's surface.
var ErrInvalidElements = errors.New("invalid orbital elements")

// Elements is a classical Keplerian element set. Angles are in degrees.
type Elements struct {
	SemiMajorAxisKm float64
	Eccentricity    float64
	InclinationDeg  float64
	RAANDeg         float64
	ArgPerigeeDeg   float64
	MeanAnomalyDeg  float64
	// Epoch is the time at which MeanAnomalyDeg holds.
	Epoch time.Time
}

// Validate checks that the elements describe an elliptical orbit whose
// perigee clears the Earth.
func (e Elements) Validate() error {
	for name, v := range map[string]float64{
		"semi_major_axis": e.SemiMajorAxisKm,
		"eccentricity":    e.Eccentricity,
		"inclination":     e.InclinationDeg,
		"raan":            e.RAANDeg,
		"arg_perigee":     e.ArgPerigeeDeg,
		"mean_anomaly":    e.MeanAnomalyDeg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %w", name, ErrInvalidElements)
		}
	}
	if e.Eccentricity < 0 || e.Eccentricity >= 1 {
		return fmt.Errorf("eccentricity %v outside [0,1): %w", e.Eccentricity, ErrInvalidElements)
	}
	if perigee := e.SemiMajorAxisKm * (1 - e.Eccentricity); perigee <= EarthRadiusKm {
		return fmt.Errorf("perigee radius %.1f km inside the Earth: %w", perigee, ErrInvalidElements)
	}
	if e.InclinationDeg < 0 || e.InclinationDeg > 180 {
		return fmt.Errorf("inclination %v outside [0,180]: %w", e.InclinationDeg, ErrInvalidElements)
	}
	return nil
}

// MeanMotion returns the mean motion in radians per second.
func (e Elements) MeanMotion() float64 {
	a := e.SemiMajorAxisKm
	return math.Sqrt(EarthMuKm3s2 / (a * a * a))
}

// Period returns the orbital period.
func (e Elements) Period() time.Duration {
	return time.Duration(2 * math.Pi / e.MeanMotion() * float64(time.Second))
}

// SolveKepler solves M = E - e·sin(E) for the eccentric anomaly E with
// Newton-Raphson. When it fails to converge within the iteration budget it
// returns the last iterate with converged=false.
func SolveKepler(meanAnomaly, ecc float64) (eccAnomaly float64, iterations int, converged bool) {
	m := math.Mod(meanAnomaly, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	e := m
	if ecc > 0.8 {
		e = math.Pi
	}
	for iterations = 1; iterations <= keplerMaxIterations; iterations++ {
		f := e - ecc*math.Sin(e) - m
		fp := 1 - ecc*math.Cos(e)
		delta := f / fp
		e -= delta
		if math.Abs(delta) < keplerTolerance {
			return e, iterations, true
		}
	}
	return e, keplerMaxIterations, false
}

// PropagateKepler advances el by dt under two-body motion and returns the
// inertial position (km) and velocity (km/s).
func PropagateKepler(el Elements, dt time.Duration) (pos, vel Vec3, converged bool) {
	ecc := el.Eccentricity
	a := el.SemiMajorAxisKm
	m := degToRad(el.MeanAnomalyDeg) + el.MeanMotion()*dt.Seconds()

	bigE, _, converged := SolveKepler(m, ecc)

	nu := 2 * math.Atan2(math.Sqrt(1+ecc)*math.Sin(bigE/2), math.Sqrt(1-ecc)*math.Cos(bigE/2))
	r := a * (1 - ecc*math.Cos(bigE))
	p := a * (1 - ecc*ecc)

	posPF := Vec3{X: r * math.Cos(nu), Y: r * math.Sin(nu)}
	vk := math.Sqrt(EarthMuKm3s2 / p)
	velPF := Vec3{X: -vk * math.Sin(nu), Y: vk * (ecc + math.Cos(nu))}

	return perifocalToInertial(posPF, el), perifocalToInertial(velPF, el), converged
}

// perifocalToInertial applies the argument of perigee, inclination and RAAN
// rotations in that order.
func perifocalToInertial(v Vec3, el Elements) Vec3 {
	v = rotateZ(v, degToRad(el.ArgPerigeeDeg))
	v = rotateX(v, degToRad(el.InclinationDeg))
	return rotateZ(v, degToRad(el.RAANDeg))
}
