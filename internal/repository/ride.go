package repository

import (
	"context"
	"time"

	"ridematch/internal/domain"
)

// StatusChange describes a conditional status update of a ride. The update
// applies only while the ride is still in From with DriverID bound (empty
// for none), so a ride reassigned in between is never changed.
type StatusChange struct {
	RideID      string
	From        domain.RideStatus
	DriverID    string
	To          domain.RideStatus
	At          time.Time
	CancelledBy string
	Reason      string
}

// RideRepository defines the persistence operations for rides.
// Methods returning (bool, error) are conditional updates: false means the
// row did not match the precondition and nothing was written.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetAll retrieves the most recent rides.
	GetAll(ctx context.Context) ([]*domain.Ride, error)

	// ClaimForDriver binds a driver to a ride still in requested state with no driver,
	// moving it to accepted and stamping matched/accepted times.
	ClaimForDriver(ctx context.Context, rideID, driverID string, at time.Time) (bool, error)

	// RevertClaim undoes ClaimForDriver for the same driver.
	RevertClaim(ctx context.Context, rideID, driverID string) (bool, error)

	// ChangeStatus moves a ride from change.From to change.To if it is still
	// bound to change.DriverID.
	ChangeStatus(ctx context.Context, change StatusChange) (bool, error)

	// AppendEvent adds an entry to the ride's timeline.
	AppendEvent(ctx context.Context, event *domain.RideEvent) error
}
