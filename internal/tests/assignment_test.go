package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"ridematch/internal/domain"
	"ridematch/internal/service"
)

func TestAssign_BindsRideAndDriver(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", offset(pickup, 1))
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)

	assignment, err := h.coordinator.Assign(ctx, "ride-1", "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.AssignedAt.IsZero() {
		t.Error("expected assignment timestamp")
	}

	ride := h.rides.GetRide("ride-1")
	if ride.Status != domain.RideStatusAccepted || ride.DriverID != "driver-1" {
		t.Errorf("expected accepted by driver-1, got %s/%s", ride.Status, ride.DriverID)
	}
	driver := h.drivers.GetDriver("driver-1")
	if driver.IsAvailable || driver.LastAssignedAt == nil {
		t.Error("expected driver unavailable with last assigned time")
	}

	if len(h.notifier.Assigned) != 1 || h.notifier.Assigned[0].DriverID != "driver-1" {
		t.Errorf("expected one ride-assigned event for driver-1, got %+v", h.notifier.Assigned)
	}
}

func TestAssign_ConcurrentCallsForSameRide(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)

	const n = 20
	for i := 0; i < n; i++ {
		h.addDriver(fmt.Sprintf("driver-%d", i), offset(pickup, 1))
	}

	var wg sync.WaitGroup
	var successes, conflicts int32
	winner := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			_, err := h.coordinator.Assign(ctx, "ride-1", driverID)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
				winner <- driverID
			case errors.Is(err, service.ErrAssignmentConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("driver-%d", i))
	}
	wg.Wait()
	close(winner)

	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if conflicts != n-1 {
		t.Errorf("expected %d conflicts, got %d", n-1, conflicts)
	}

	won := <-winner
	if ride := h.rides.GetRide("ride-1"); ride.DriverID != won {
		t.Errorf("ride bound to %q, winner was %q", ride.DriverID, won)
	}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("driver-%d", i)
		d := h.drivers.GetDriver(id)
		if id == won && d.IsAvailable {
			t.Errorf("winning driver %s must be unavailable", id)
		}
		if id != won && !d.IsAvailable {
			t.Errorf("losing driver %s must stay available", id)
		}
	}
	if h.drivers.ClaimCallCount != 1 {
		t.Errorf("losers must not touch drivers, got %d driver claims", h.drivers.ClaimCallCount)
	}
}

func TestAssign_ConcurrentRidesForSameDriver(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", offset(pickup, 1))

	const n = 20
	for i := 0; i < n; i++ {
		h.addRide(fmt.Sprintf("ride-%d", i), fmt.Sprintf("rider-%d", i), "", domain.RideStatusRequested)
	}

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rideID string) {
			defer wg.Done()
			_, err := h.coordinator.Assign(ctx, rideID, "driver-1")
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			var conflict *service.ConflictError
			if !errors.As(err, &conflict) || conflict.Phase != service.PhaseDriver {
				t.Errorf("expected driver-phase conflict, got %v", err)
			}
		}(fmt.Sprintf("ride-%d", i))
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}

	bound := 0
	for i := 0; i < n; i++ {
		ride := h.rides.GetRide(fmt.Sprintf("ride-%d", i))
		switch {
		case ride.DriverID == "driver-1" && ride.Status == domain.RideStatusAccepted:
			bound++
		case ride.DriverID == "" && ride.Status == domain.RideStatusRequested && ride.MatchedAt == nil:
		default:
			t.Errorf("ride %s left in %s/%q after rollback", ride.ID, ride.Status, ride.DriverID)
		}
	}
	if bound != 1 {
		t.Errorf("driver bound to %d rides, want 1", bound)
	}
	if h.rides.RevertCallCount != n-1 {
		t.Errorf("expected %d rollbacks, got %d", n-1, h.rides.RevertCallCount)
	}
}

func TestAssign_RollsBackWhenDriverVanished(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)

	_, err := h.coordinator.Assign(ctx, "ride-1", "driver-gone")

	var conflict *service.ConflictError
	if !errors.As(err, &conflict) || conflict.Phase != service.PhaseDriver {
		t.Fatalf("expected driver-phase conflict, got %v", err)
	}

	ride := h.rides.GetRide("ride-1")
	if ride.Status != domain.RideStatusRequested || ride.HasDriver() || ride.MatchedAt != nil || ride.AcceptedAt != nil {
		t.Errorf("expected ride reverted to requested, got %+v", ride)
	}
	if assigned, _ := h.notifier.Counts(); assigned != 0 {
		t.Error("a rolled back assignment must not notify")
	}
}

func TestAssign_RollsBackOnDriverStoreFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", offset(pickup, 1))
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)
	h.drivers.ClaimError = errors.New("connection reset")

	_, err := h.coordinator.Assign(ctx, "ride-1", "driver-1")
	if err == nil || errors.Is(err, service.ErrAssignmentConflict) {
		t.Fatalf("expected downstream error, got %v", err)
	}

	if ride := h.rides.GetRide("ride-1"); ride.Status != domain.RideStatusRequested || ride.HasDriver() {
		t.Errorf("expected ride reverted, got %s/%q", ride.Status, ride.DriverID)
	}
}

func TestAssign_InactiveDriverIsConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.drivers.AddDriver(&domain.Driver{ID: "driver-suspended", IsActive: false, IsAvailable: true})
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)

	_, err := h.coordinator.Assign(ctx, "ride-1", "driver-suspended")
	if !errors.Is(err, service.ErrAssignmentConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !h.drivers.GetDriver("driver-suspended").IsAvailable {
		t.Error("inactive driver's availability must not change")
	}
}

func TestAssign_Validation(t *testing.T) {
	h := newHarness(t)

	if _, err := h.coordinator.Assign(context.Background(), "", "driver-1"); !errors.Is(err, service.ErrInvalidRideID) {
		t.Errorf("expected ErrInvalidRideID, got %v", err)
	}
	if _, err := h.coordinator.Assign(context.Background(), "ride-1", ""); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
	if h.rides.ClaimCallCount != 0 {
		t.Error("validation failures must not reach the store")
	}
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", offset(pickup, 1))
	h.addRide("ride-1", "rider-1", "", domain.RideStatusRequested)

	if _, err := h.coordinator.Assign(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.drivers.GetDriver("driver-1").IsAvailable {
		t.Fatal("expected driver unavailable after assign")
	}

	if err := h.coordinator.Release(ctx, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	driver := h.drivers.GetDriver("driver-1")
	if !driver.IsAvailable || driver.LastReleasedAt == nil {
		t.Error("expected driver available with last released time")
	}

	if err := h.coordinator.Release(ctx, "driver-unknown"); service.CodeOf(err) != service.CodeDriverNotFound {
		t.Errorf("expected DRIVER_NOT_FOUND, got %v", err)
	}
	if err := h.coordinator.Release(ctx, ""); service.CodeOf(err) != service.CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
