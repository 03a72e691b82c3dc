package service

import (
	"context"
	"log/slog"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/notify"
	"ridematch/internal/repository"
)

// Assignment is the outcome of a successful ride/driver binding.
type Assignment struct {
	RideID     string    `json:"ride_id"`
	DriverID   string    `json:"driver_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AssignmentCoordinator binds rides to drivers with conditional updates on
// both records and reverts the ride claim when the driver claim fails.
type AssignmentCoordinator struct {
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	notifier   notify.Notifier
	log        *slog.Logger
}

// NewAssignmentCoordinator creates a new AssignmentCoordinator.
func NewAssignmentCoordinator(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	notifier notify.Notifier,
	log *slog.Logger,
) *AssignmentCoordinator {
	return &AssignmentCoordinator{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		notifier:   notifier,
		log:        log,
	}
}

// Assign binds driverID to rideID. Concurrent calls for the same ride see at
// most one success; every loser gets a *ConflictError and writes nothing.
//
// Between the ride claim and the driver claim the ride is bound while the
// driver still reads as available. A competing ride may pick the driver in
// that window; its driver claim then fails and it rolls back.
func (c *AssignmentCoordinator) Assign(ctx context.Context, rideID, driverID string) (*Assignment, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	now := time.Now().UTC()

	claimed, err := c.rideRepo.ClaimForDriver(ctx, rideID, driverID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, &ConflictError{RideID: rideID, DriverID: driverID, Phase: PhaseRide}
	}

	claimed, err = c.driverRepo.Claim(ctx, driverID, now)
	if err != nil || !claimed {
		if rbErr := c.rollback(ctx, rideID, driverID); rbErr != nil {
			c.log.ErrorContext(ctx, "failed to revert ride claim",
				slog.String("ride_id", rideID),
				slog.String("driver_id", driverID),
				slog.Any("error", rbErr),
			)
		}
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{RideID: rideID, DriverID: driverID, Phase: PhaseDriver}
	}

	c.log.InfoContext(ctx, "driver assigned",
		slog.String("ride_id", rideID),
		slog.String("driver_id", driverID),
	)

	c.notifier.RideAssigned(ctx, notify.Event{
		Type:      notify.EventRideAssigned,
		RideID:    rideID,
		DriverID:  driverID,
		Status:    domain.RideStatusAccepted,
		Timestamp: now,
	})

	return &Assignment{RideID: rideID, DriverID: driverID, AssignedAt: now}, nil
}

// Release marks a driver available again.
func (c *AssignmentCoordinator) Release(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	released, err := c.driverRepo.Release(ctx, driverID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !released {
		return ErrDriverNotFound
	}

	c.log.InfoContext(ctx, "driver released", slog.String("driver_id", driverID))
	return nil
}

// rollback reverts the ride claim. The caller's context may already be
// cancelled, and the compensation must still run.
func (c *AssignmentCoordinator) rollback(ctx context.Context, rideID, driverID string) error {
	_, err := c.rideRepo.RevertClaim(context.WithoutCancel(ctx), rideID, driverID)
	return err
}
