package redis

import (
	"context"
	"time"

	"ridematch/internal/geo"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, p geo.Point) error
	FindNear(ctx context.Context, p geo.Point, radiusMeters int) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for search deduplication markers.
type LockStoreInterface interface {
	AcquireSearchLock(ctx context.Context, rideID, token string, ttl time.Duration) (bool, error)
	ReleaseSearchLock(ctx context.Context, rideID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
