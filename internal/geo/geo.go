// Package geo contains the pure geographic helpers used by matching.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

var (
	// ErrInvalidLongitude is returned for a longitude outside [-180, 180] or not a number.
	ErrInvalidLongitude = errors.New("longitude must be a number in [-180, 180]")

	// ErrInvalidLatitude is returned for a latitude outside [-90, 90] or not a number.
	ErrInvalidLatitude = errors.New("latitude must be a number in [-90, 90]")
)

// Point is a longitude/latitude pair in decimal degrees.
type Point struct {
	Lng float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// Validate reports whether p is a usable coordinate.
func (p Point) Validate() error {
	if !finite(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	if !finite(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	return nil
}

// HaversineKm returns the great-circle distance between a and b in kilometers.
func HaversineKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// Rounding can push h marginally outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ArrivalMinutes estimates travel time for distanceKm at speedKmh, rounded to whole minutes.
func ArrivalMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		return 0
	}
	return int(math.Round(distanceKm / speedKmh * 60))
}

// MetersToKm converts a radius in meters to kilometers.
func MetersToKm(m int) float64 {
	return float64(m) / 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
