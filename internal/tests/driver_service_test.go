package tests

import (
	"context"
	"testing"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/service"
)

func TestDriverService_UpdateLocation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.drivers.AddDriver(&domain.Driver{ID: "driver-1", IsActive: true, IsAvailable: true})

	p := offset(pickup, 2)
	if err := h.driverService.UpdateLocation(ctx, "driver-1", p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	driver := h.drivers.GetDriver("driver-1")
	if driver.CurrentLocation == nil || *driver.CurrentLocation != p || driver.LocationUpdatedAt == nil {
		t.Errorf("expected location persisted, got %+v", driver.CurrentLocation)
	}
	if !h.locations.HasLocation("driver-1") {
		t.Error("expected driver in the location index")
	}
}

func TestDriverService_UpdateLocationUnknownDriver(t *testing.T) {
	h := newHarness(t)

	err := h.driverService.UpdateLocation(context.Background(), "driver-ghost", pickup)
	if service.CodeOf(err) != service.CodeDriverNotFound {
		t.Fatalf("expected DRIVER_NOT_FOUND, got %v", err)
	}
	if h.locations.HasLocation("driver-ghost") {
		t.Error("unknown drivers must not enter the index")
	}
}

func TestDriverService_UpdateLocationValidation(t *testing.T) {
	h := newHarness(t)
	h.drivers.AddDriver(&domain.Driver{ID: "driver-1", IsActive: true, IsAvailable: true})

	for _, p := range []geo.Point{{Lng: 190, Lat: 0}, {Lng: 0, Lat: -100}} {
		err := h.driverService.UpdateLocation(context.Background(), "driver-1", p)
		if service.CodeOf(err) != service.CodeValidation {
			t.Errorf("point %+v: expected VALIDATION_ERROR, got %v", p, err)
		}
	}
	if err := h.driverService.UpdateLocation(context.Background(), "", pickup); service.CodeOf(err) != service.CodeValidation {
		t.Errorf("empty id: expected VALIDATION_ERROR, got %v", err)
	}
}

func TestDriverService_GoOfflineKeepsAvailability(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", offset(pickup, 1))
	h.drivers.SetAvailable("driver-1", false)

	if err := h.driverService.GoOffline(ctx, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.locations.HasLocation("driver-1") {
		t.Error("offline driver must leave the index")
	}
	if h.drivers.GetDriver("driver-1").IsAvailable {
		t.Error("going offline must not release a bound driver")
	}

	if err := h.driverService.GoOffline(ctx, "driver-ghost"); service.CodeOf(err) != service.CodeDriverNotFound {
		t.Errorf("expected DRIVER_NOT_FOUND, got %v", err)
	}
}

func TestDriverService_NearbyUsesDefaultRadius(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-near", offset(pickup, 3))
	h.addDriver("driver-far", offset(pickup, 7))

	drivers, err := h.driverService.Nearby(ctx, pickup, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drivers) != 1 || drivers[0].DriverID != "driver-near" {
		t.Errorf("expected only driver-near within 5 km, got %+v", drivers)
	}

	drivers, err = h.driverService.Nearby(ctx, pickup, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drivers) != 2 {
		t.Errorf("expected 2 drivers within 10 km, got %d", len(drivers))
	}
	if h.drivers.ClaimCallCount != 0 {
		t.Error("listing nearby drivers must not claim anyone")
	}
}
