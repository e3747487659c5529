package geo

import "testing"

func TestHaversineKM(t *testing.T) {
	got := HaversineKM(50.0, 14.0, 50.0, 15.0)
	want := 71.49
	if diff := got - want; diff > 0.05 || diff < -0.05 {
		t.Errorf("HaversineKM(50,14,50,15) = %v, want ~%v", got, want)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := []float64{50.1, 14.2}
	b := []float64{49.8, 14.9}
	d1 := HaversineKM(a[0], a[1], b[0], b[1])
	d2 := HaversineKM(b[0], b[1], a[0], a[1])
	if d1 != d2 {
		t.Errorf("haversine not symmetric: %v != %v", d1, d2)
	}
}

func TestHaversineZeroForEqualPoints(t *testing.T) {
	d := HaversineKM(48.0, 16.0, 48.0, 16.0)
	if d > 1e-9 || d < -1e-9 {
		t.Errorf("expected ~0, got %v", d)
	}
}

func TestMidpoint(t *testing.T) {
	lon, lat := Midpoint(14.0, 50.0, 15.0, 50.5)
	if lon != 14.5 || lat != 50.25 {
		t.Errorf("Midpoint = (%v, %v), want (14.5, 50.25)", lon, lat)
	}
}

func TestLinSpace(t *testing.T) {
	pts := LinSpace(0, 10, 3)
	want := []float64{0, 5, 10}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("LinSpace[%d] = %v, want %v", i, pts[i], want[i])
		}
	}
}
