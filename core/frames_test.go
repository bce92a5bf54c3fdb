package core

import (
	"math"
	"testing"
	"time"
)

func TestGeodeticRoundTrip(t *testing.T) {
	for _, g := range []Geodetic{
		{LatDeg: 0, LonDeg: 0, AltKm: 0},
		{LatDeg: 52.52, LonDeg: 13.405, AltKm: 0.034},
		{LatDeg: -33.92, LonDeg: 18.42, AltKm: 1.2},
		{LatDeg: 78.23, LonDeg: 15.4, AltKm: 0.5},
		{LatDeg: 89.9, LonDeg: -120, AltKm: 550},
		{LatDeg: -60, LonDeg: 179.5, AltKm: 20000},
	} {
		got := FixedToGeodetic(GeodeticToFixed(g))
		if math.Abs(got.LatDeg-g.LatDeg) > 1e-6 || math.Abs(got.LonDeg-g.LonDeg) > 1e-6 || math.Abs(got.AltKm-g.AltKm) > 1e-5 {
			t.Errorf("round trip %+v -> %+v", g, got)
		}
	}
}

func TestGeodeticToFixedEquator(t *testing.T) {
	v := GeodeticToFixed(Geodetic{})
	if math.Abs(v.X-wgs84A) > 1e-9 || math.Abs(v.Y) > 1e-9 || math.Abs(v.Z) > 1e-9 {
		t.Fatalf("equator/prime meridian = %+v, want (%v,0,0)", v, wgs84A)
	}
}

func TestFixedToGeodeticPole(t *testing.T) {
	g := FixedToGeodetic(Vec3{Z: 6400})
	if math.Abs(g.LatDeg-90) > 1e-9 {
		t.Fatalf("pole latitude = %v", g.LatDeg)
	}
	south := FixedToGeodetic(Vec3{Z: -6400})
	if math.Abs(south.LatDeg+90) > 1e-9 {
		t.Fatalf("south pole latitude = %v", south.LatDeg)
	}
}

func TestInertialFixedRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 20, 12, 34, 56, 789_000_000, time.UTC)
	v := Vec3{X: 4000, Y: -5200, Z: 1800}
	back := FixedToInertial(InertialToFixed(v, at), at)
	if d := back.DistanceTo(v); d > 1e-6 {
		t.Fatalf("round trip drift %v km", d)
	}
	if z := InertialToFixed(v, at).Z; z != v.Z {
		t.Fatalf("rotation about Z changed Z: %v", z)
	}
}

func TestGMSTAdvancesWithEarthRotation(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// One sidereal day later the angle repeats.
	sidereal := time.Duration(86164.0905 * float64(time.Second))
	a, b := GMST(t0), GMST(t0.Add(sidereal))
	diff := math.Mod(math.Abs(a-b), 2*math.Pi)
	if diff > 1e-3 && 2*math.Pi-diff > 1e-3 {
		t.Fatalf("GMST after a sidereal day differs by %v rad", diff)
	}
}

func TestTopocentric(t *testing.T) {
	site := Geodetic{LatDeg: 10, LonDeg: 20}
	obs := GeodeticToFixed(site)

	up := GeodeticToFixed(Geodetic{LatDeg: 10, LonDeg: 20, AltKm: 600})
	look := Topocentric(site, obs, up)
	if math.Abs(look.ElevationDeg-90) > 1e-6 {
		t.Fatalf("overhead elevation = %v", look.ElevationDeg)
	}
	if math.Abs(look.RangeKm-600) > 1e-6 {
		t.Fatalf("overhead range = %v", look.RangeKm)
	}

	north := GeodeticToFixed(Geodetic{LatDeg: 15, LonDeg: 20, AltKm: 600})
	if az := Topocentric(site, obs, north).AzimuthDeg; az > 1 && az < 359 {
		t.Fatalf("northern target azimuth = %v, want about 0", az)
	}
	east := GeodeticToFixed(Geodetic{LatDeg: 10, LonDeg: 25, AltKm: 600})
	if az := Topocentric(site, obs, east).AzimuthDeg; math.Abs(az-90) > 2 {
		t.Fatalf("eastern target azimuth = %v, want about 90", az)
	}

	if el := Topocentric(site, obs, obs).ElevationDeg; el != 90 {
		t.Fatalf("zero range elevation = %v", el)
	}
}
