package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378.137
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Geodetic is a WGS-84 surface-relative position. Angles in degrees,
// altitude in kilometres.
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// GMST returns the Greenwich mean sidereal angle in radians at t.
func GMST(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	jd += float64(t.Nanosecond()) / (86400 * 1e9)
	return satellite.ThetaG_JD(jd)
}

// InertialToFixed rotates an inertial position into the Earth-fixed frame at t.
func InertialToFixed(v Vec3, t time.Time) Vec3 {
	ecef := satellite.ECIToECEF(satellite.Vector3{X: v.X, Y: v.Y, Z: v.Z}, GMST(t))
	return Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
}

// FixedToInertial rotates an Earth-fixed position into the inertial frame at t.
func FixedToInertial(v Vec3, t time.Time) Vec3 {
	return rotateZ(v, GMST(t))
}

// GeodeticToFixed converts a geodetic position to Earth-fixed Cartesian km.
func GeodeticToFixed(g Geodetic) Vec3 {
	lat := degToRad(g.LatDeg)
	lon := degToRad(g.LonDeg)
	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return Vec3{
		X: (n + g.AltKm) * math.Cos(lat) * math.Cos(lon),
		Y: (n + g.AltKm) * math.Cos(lat) * math.Sin(lon),
		Z: (n*(1-wgs84E2) + g.AltKm) * sinLat,
	}
}

// FixedToGeodetic converts an Earth-fixed position to WGS-84 geodetic
// coordinates using fixed-point iteration on latitude.
func FixedToGeodetic(v Vec3) Geodetic {
	lon := math.Atan2(v.Y, v.X)
	p := math.Hypot(v.X, v.Y)

	if p < 1e-9 {
		b := wgs84A * (1 - wgs84F)
		lat := math.Pi / 2
		if v.Z < 0 {
			lat = -lat
		}
		return Geodetic{LatDeg: radToDeg(lat), LonDeg: 0, AltKm: math.Abs(v.Z) - b}
	}

	lat := math.Atan2(v.Z, p*(1-wgs84E2))
	var alt float64
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		alt = p/math.Cos(lat) - n
		next := math.Atan2(v.Z, p*(1-wgs84E2*n/(n+alt)))
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	return Geodetic{LatDeg: radToDeg(lat), LonDeg: radToDeg(lon), AltKm: alt}
}

// LookAngles describes a target as seen from a topocentric observer.
type LookAngles struct {
	ElevationDeg float64
	AzimuthDeg   float64
	RangeKm      float64
}

// Topocentric returns the look angles from observer to target. Both
// positions are Earth-fixed; obs is the observer's geodetic position, which
// defines the local vertical.
func Topocentric(obs Geodetic, observer, target Vec3) LookAngles {
	d := target.Sub(observer)
	rng := d.Norm()
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}
	lat := degToRad(obs.LatDeg)
	lon := degToRad(obs.LonDeg)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	east := -sinLon*d.X + cosLon*d.Y
	north := -sinLat*cosLon*d.X - sinLat*sinLon*d.Y + cosLat*d.Z
	up := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z

	az := radToDeg(math.Atan2(east, north))
	if az < 0 {
		az += 360
	}
	return LookAngles{
		ElevationDeg: radToDeg(math.Asin(clamp(up/rng, -1, 1))),
		AzimuthDeg:   az,
		RangeKm:      rng,
	}
}
