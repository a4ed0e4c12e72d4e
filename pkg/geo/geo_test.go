package geo

import (
	"math"
	"testing"
)

func TestValidateCoordinate(t *testing.T) {
	cases := []struct {
		name    string
		lat, nd float64
		ok      bool
	}{
		{"origin", 0, 0, true},
		{"poles", 90, 180, true},
		{"negative extremes", -90, -180, true},
		{"lat too big", 90.01, 0, false},
		{"lat too small", -90.01, 0, false},
		{"lon too big", 0, 180.01, false},
		{"lon too small", 0, -180.01, false},
		{"nan lat", math.NaN(), 0, false},
		{"nan lon", 0, math.NaN(), false},
	}
	for _, c := range cases {
		err := ValidateCoordinate(c.lat, c.nd)
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && err != ErrInvalidCoordinate {
			t.Errorf("%s: expected ErrInvalidCoordinate, got %v", c.name, err)
		}
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(40.0, -73.0, 40.0, -73.0); d != 0 {
		t.Errorf("identical points: expected 0, got %f", d)
	}
	// One thousandth of a degree near New York is roughly 140m.
	d := Distance(40.0, -73.0, 40.001, -73.001)
	if d < 120 || d > 160 {
		t.Errorf("expected ~140m, got %f", d)
	}
	// Symmetry.
	if d2 := Distance(40.001, -73.001, 40.0, -73.0); math.Abs(d-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d, d2)
	}
}
