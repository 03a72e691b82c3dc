package geo

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		wantKm float64
		within float64
	}{
		{
			name:   "same point",
			a:      Point{Lng: -74.006, Lat: 40.7128},
			b:      Point{Lng: -74.006, Lat: 40.7128},
			wantKm: 0,
			within: tolerance,
		},
		{
			name:   "New York to Los Angeles",
			a:      Point{Lng: -74.0060, Lat: 40.7128},
			b:      Point{Lng: -118.2437, Lat: 34.0522},
			wantKm: 3936,
			within: 15,
		},
		{
			name:   "across the antimeridian",
			a:      Point{Lng: 179, Lat: 0},
			b:      Point{Lng: -179, Lat: 0},
			wantKm: 222.39,
			within: 0.5,
		},
		{
			name:   "north pole with different longitudes",
			a:      Point{Lng: 0, Lat: 90},
			b:      Point{Lng: 135, Lat: 90},
			wantKm: 0,
			within: 1e-6,
		},
		{
			name:   "south pole with different longitudes",
			a:      Point{Lng: -180, Lat: -90},
			b:      Point{Lng: 45, Lat: -90},
			wantKm: 0,
			within: 1e-6,
		},
		{
			name:   "antipodal points",
			a:      Point{Lng: 0, Lat: 0},
			b:      Point{Lng: 180, Lat: 0},
			wantKm: math.Pi * EarthRadiusKm,
			within: 1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.within {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.within)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	points := []Point{
		{Lng: -74.006, Lat: 40.7128},
		{Lng: 121.565, Lat: 25.033},
		{Lng: 179.9, Lat: -45},
		{Lng: -179.9, Lat: 89.9},
		{Lng: 0, Lat: -90},
	}

	for i, a := range points {
		if d := HaversineKm(a, a); d != 0 {
			t.Errorf("distance(p%d, p%d) = %f, want 0", i, i, d)
		}
		for j, b := range points {
			d1 := HaversineKm(a, b)
			d2 := HaversineKm(b, a)
			if math.Abs(d1-d2) > tolerance {
				t.Errorf("not symmetric for p%d/p%d: %f vs %f", i, j, d1, d2)
			}
		}
	}
}

func TestPoint_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want error
	}{
		{"valid", Point{Lng: -74.006, Lat: 40.7128}, nil},
		{"edges", Point{Lng: 180, Lat: -90}, nil},
		{"longitude too large", Point{Lng: 180.0001, Lat: 0}, ErrInvalidLongitude},
		{"longitude too small", Point{Lng: -181, Lat: 0}, ErrInvalidLongitude},
		{"latitude too large", Point{Lng: 0, Lat: 91}, ErrInvalidLatitude},
		{"nan longitude", Point{Lng: math.NaN(), Lat: 0}, ErrInvalidLongitude},
		{"infinite latitude", Point{Lng: 0, Lat: math.Inf(1)}, ErrInvalidLatitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Validate(); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArrivalMinutes(t *testing.T) {
	tests := []struct {
		distanceKm float64
		speedKmh   float64
		want       int
	}{
		{0, 25, 0},
		{1, 25, 2},     // 2.4 min
		{2.5, 25, 6},   // 6.0 min
		{3.125, 25, 8}, // 7.5 min rounds half away from zero
		{10, 25, 24},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := ArrivalMinutes(tt.distanceKm, tt.speedKmh); got != tt.want {
			t.Errorf("ArrivalMinutes(%v, %v) = %d, want %d", tt.distanceKm, tt.speedKmh, got, tt.want)
		}
	}
}
