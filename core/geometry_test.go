package core

import (
	"math"
	"testing"
)

func TestLineOfSight_NoObstruction(t *testing.T) {
	// Two satellites high and on the same side of Earth, separated in Y.
	// The segment between them stays at x ≈ 8000 km, well outside Earth.
	posA := Vec3{X: 8000, Y: 0, Z: 0}
	posB := Vec3{X: 8000, Y: 1000, Z: 0}

	if !LineOfSight(posA, posB, DefaultGrazingAltitudeKm) {
		t.Errorf("expected LoS between two high satellites on same side of Earth")
	}
}

func TestLineOfSight_Obstructed(t *testing.T) {
	// Two points on opposite sides: the chord passes through the Earth.
	posA := Vec3{X: 7000, Y: 0, Z: 0}
	posB := Vec3{X: -7000, Y: 0, Z: 0}

	if LineOfSight(posA, posB, DefaultGrazingAltitudeKm) {
		t.Errorf("expected LoS to be blocked by Earth")
	}
}

func TestLineOfSight_GrazingAltitude(t *testing.T) {
	// The chord between these points passes 50 km above the surface at its
	// midpoint.
	r := EarthRadiusKm + 50
	posA := Vec3{X: r, Y: -3000, Z: 0}
	posB := Vec3{X: r, Y: 3000, Z: 0}

	if !LineOfSight(posA, posB, 0) {
		t.Errorf("expected LoS with no grazing margin")
	}
	if LineOfSight(posA, posB, DefaultGrazingAltitudeKm) {
		t.Errorf("expected a 100 km grazing margin to block the chord")
	}
}

func TestLineOfSight_SamePoint(t *testing.T) {
	p := Vec3{X: 7000}
	if !LineOfSight(p, p, DefaultGrazingAltitudeKm) {
		t.Errorf("a point above the atmosphere sees itself")
	}
}

func TestElevationDegrees(t *testing.T) {
	ground := Vec3{X: EarthRadiusKm}
	overhead := Vec3{X: EarthRadiusKm + 500}
	if el := ElevationDegrees(ground, overhead); math.Abs(el-90) > 1e-9 {
		t.Errorf("overhead elevation = %v, want 90", el)
	}

	horizon := Vec3{X: EarthRadiusKm, Y: 1000}
	if el := ElevationDegrees(ground, horizon); math.Abs(el) > 1e-9 {
		t.Errorf("horizon elevation = %v, want 0", el)
	}

	below := Vec3{X: -EarthRadiusKm}
	if el := ElevationDegrees(ground, below); el >= 0 {
		t.Errorf("antipode elevation = %v, want negative", el)
	}
}

func TestVec3Helpers(t *testing.T) {
	v := Vec3{X: 3, Y: 4}
	if v.Norm() != 5 {
		t.Fatalf("Norm = %v, want 5", v.Norm())
	}
	if u := v.Unit(); math.Abs(u.Norm()-1) > 1e-12 {
		t.Fatalf("Unit norm = %v", u.Norm())
	}
	if (Vec3{}).Unit() != (Vec3{}) {
		t.Fatalf("zero vector Unit should stay zero")
	}
	if d := v.DistanceTo(Vec3{}); d != 5 {
		t.Fatalf("DistanceTo = %v", d)
	}
}
