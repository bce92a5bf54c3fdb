package core

import "math"

// EarthRadiusKm is the mean Earth radius used for occlusion checks
// (kilometres).
const EarthRadiusKm = 6371.0

// DefaultGrazingAltitudeKm keeps inter-satellite lines of sight clear of the
// dense atmosphere.
const DefaultGrazingAltitudeKm = 100.0

// Vec3 is a Cartesian vector in kilometres (or km/s for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Unit returns v normalised to length 1, or the zero vector.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// rotateZ rotates v by angle radians about the Z axis.
func rotateZ(v Vec3, angle float64) Vec3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec3{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}

// rotateX rotates v by angle radians about the X axis.
func rotateX(v Vec3, angle float64) Vec3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec3{X: v.X, Y: c*v.Y - s*v.Z, Z: s*v.Y + c*v.Z}
}

// LineOfSight reports whether the segment between p1 and p2 clears a sphere
// of radius EarthRadiusKm+grazingKm centred on the origin. Both points must
// be in the same Earth-centred frame.
func LineOfSight(p1, p2 Vec3, grazingKm float64) bool {
	limit := EarthRadiusKm + grazingKm
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) > limit*limit
	}

	// Closest point on the segment to the Earth's centre.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := p1.Add(v.Scale(t))
	return closest.Dot(closest) > limit*limit
}

// ElevationDegrees returns the geocentric elevation angle of target as seen
// from observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}
	zenith := observer.Unit()
	if zenith == (Vec3{}) {
		return 90
	}
	sinEl := v.Dot(zenith) / vNorm
	return radToDeg(math.Asin(clamp(sinEl, -1, 1)))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
