package tests

import (
	"context"
	"fmt"
	"testing"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
)

func TestCandidateFinder_FiltersIneligibleDrivers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addDriver("driver-ok", offset(pickup, 1))
	h.addDriver("driver-busy", offset(pickup, 0.5))
	h.drivers.SetAvailable("driver-busy", false)
	h.drivers.AddDriver(&domain.Driver{ID: "driver-suspended", IsActive: false, IsAvailable: true})
	h.locations.SetLocation("driver-suspended", offset(pickup, 0.2))
	// Indexed but no driver record.
	h.locations.SetLocation("driver-ghost", offset(pickup, 0.1))

	candidates, err := h.finder.Find(ctx, pickup, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].DriverID != "driver-ok" {
		t.Fatalf("expected only driver-ok, got %+v", candidates)
	}
}

func TestCandidateFinder_SortsByDistanceAndEstimatesArrival(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addDriver("driver-3km", offset(pickup, 3))
	h.addDriver("driver-1km", offset(pickup, 1))
	h.addDriver("driver-2km", offset(pickup, 2))

	candidates, err := h.finder.Find(ctx, pickup, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"driver-1km", "driver-2km", "driver-3km"}
	for i, c := range candidates {
		if c.DriverID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], c.DriverID)
		}
	}

	// 3 km at 25 km/h is 7.2 minutes.
	if candidates[2].EstimatedArrivalMin != 7 {
		t.Errorf("expected 7 minute arrival, got %d", candidates[2].EstimatedArrivalMin)
	}
	if d := candidates[0].DistanceKm; d < 0.99 || d > 1.01 {
		t.Errorf("expected ~1 km, got %f", d)
	}
}

func TestCandidateFinder_BreaksTiesByDriverID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	same := offset(pickup, 1)
	h.addDriver("driver-c", same)
	h.addDriver("driver-a", same)
	h.addDriver("driver-b", same)

	for i := 0; i < 5; i++ {
		candidates, err := h.finder.Find(ctx, pickup, 5000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if candidates[0].DriverID != "driver-a" || candidates[1].DriverID != "driver-b" || candidates[2].DriverID != "driver-c" {
			t.Fatalf("expected a, b, c order, got %s, %s, %s",
				candidates[0].DriverID, candidates[1].DriverID, candidates[2].DriverID)
		}
	}
}

func TestCandidateFinder_LimitsToTenCandidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 12; i++ {
		h.addDriver(fmt.Sprintf("driver-%02d", i), offset(pickup, 0.1*float64(i+1)))
	}

	candidates, err := h.finder.Find(ctx, pickup, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 10 {
		t.Fatalf("expected 10 candidates, got %d", len(candidates))
	}
	if candidates[9].DriverID != "driver-09" {
		t.Errorf("expected the ten nearest, last was %s", candidates[9].DriverID)
	}
}

func TestCandidateFinder_AcrossAntimeridian(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addDriver("driver-east", geo.Point{Lng: -179.99, Lat: 0})

	candidates, err := h.finder.Find(ctx, geo.Point{Lng: 179.99, Lat: 0}, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected the driver across the antimeridian, got %d candidates", len(candidates))
	}
	if candidates[0].DistanceKm > 2.3 {
		t.Errorf("expected ~2.2 km, got %f", candidates[0].DistanceKm)
	}
}
