package repository

import (
	"context"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
)

// DriverRepository defines the persistence operations on driver availability records.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// FilterEligible returns the subset of ids that are active, available drivers.
	FilterEligible(ctx context.Context, ids []string) (map[string]*domain.Driver, error)

	// Claim marks an eligible, available driver as unavailable.
	Claim(ctx context.Context, driverID string, at time.Time) (bool, error)

	// Release marks a driver as available again.
	Release(ctx context.Context, driverID string, at time.Time) (bool, error)

	// UpdateLocation stores the driver's last reported position.
	UpdateLocation(ctx context.Context, driverID string, p geo.Point, at time.Time) error
}
