package tests

import (
	"testing"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/logger"
	"ridematch/internal/service"
)

// Lower Manhattan, used as the pickup point throughout.
var pickup = geo.Point{Lng: -74.006, Lat: 40.7128}

var defaultRadii = []int{5000, 10000, 15000}

type harness struct {
	rides     *MockRideRepository
	drivers   *MockDriverRepository
	locations *MockLocationStore
	locks     *MockLockStore
	notifier  *MockNotifier
	scheduler *MockScheduler

	finder        *service.CandidateFinder
	coordinator   *service.AssignmentCoordinator
	matcher       *service.MatchingService
	rideService   *service.RideService
	driverService *service.DriverService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.Discard()
	h := &harness{
		rides:     NewMockRideRepository(),
		drivers:   NewMockDriverRepository(),
		locations: NewMockLocationStore(),
		locks:     NewMockLockStore(),
		notifier:  &MockNotifier{},
		scheduler: &MockScheduler{},
	}

	h.finder = service.NewCandidateFinder(h.locations, h.drivers, 10, 25)
	h.coordinator = service.NewAssignmentCoordinator(h.rides, h.drivers, h.notifier, log)
	h.matcher = service.NewMatchingService(h.finder, h.coordinator, h.rides, defaultRadii, 5000, log)
	h.rideService = service.NewRideService(h.rides, h.coordinator, h.scheduler, h.notifier, log)
	h.driverService = service.NewDriverService(h.locations, h.drivers, h.finder, 5000, log)
	return h
}

// addDriver registers an active, available driver at p.
func (h *harness) addDriver(id string, p geo.Point) {
	h.drivers.AddDriver(&domain.Driver{
		ID:              id,
		Name:            "Driver " + id,
		IsActive:        true,
		IsAvailable:     true,
		CurrentLocation: &p,
	})
	h.locations.SetLocation(id, p)
}

// addRide stores a ride in the given status, bound to driverID if non-empty.
func (h *harness) addRide(id, riderID, driverID string, status domain.RideStatus) {
	h.rides.AddRide(&domain.Ride{
		ID:          id,
		RiderID:     riderID,
		DriverID:    driverID,
		Status:      status,
		Pickup:      pickup,
		Destination: geo.Point{Lng: -73.9857, Lat: 40.7484},
		RequestedAt: time.Now().UTC(),
	})
}

// offset returns a point roughly km kilometres north of p.
func offset(p geo.Point, km float64) geo.Point {
	return geo.Point{Lng: p.Lng, Lat: p.Lat + km/111.195}
}
