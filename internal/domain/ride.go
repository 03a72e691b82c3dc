package domain

import (
	"time"

	"ridematch/internal/geo"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusMatched    RideStatus = "matched"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// ParseRideStatus converts a raw string into a known RideStatus.
func ParseRideStatus(s string) (RideStatus, bool) {
	switch st := RideStatus(s); st {
	case RideStatusRequested, RideStatusMatched, RideStatusAccepted,
		RideStatusInProgress, RideStatusCompleted, RideStatusCancelled:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions leave this status.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Ride represents a ride request in the system.
type Ride struct {
	ID          string
	RiderID     string
	DriverID    string // empty until assigned
	Status      RideStatus
	Pickup      geo.Point
	Destination geo.Point

	// Fare fields belong to the pricing collaborator and are carried as-is.
	FareEstimate float64
	FinalFare    *float64

	RequestedAt  time.Time
	MatchedAt    *time.Time
	AcceptedAt   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelledBy  string
	CancelReason string
}

// HasDriver reports whether a driver is bound to the ride.
func (r *Ride) HasDriver() bool {
	return r.DriverID != ""
}

// RideEventType identifies an entry in a ride's timeline.
type RideEventType string

const (
	RideEventNoDriversAvailable  RideEventType = "NO_DRIVERS_AVAILABLE"
	RideEventDriverReleaseFailed RideEventType = "DRIVER_RELEASE_FAILED"
)

// RideEvent is an append-only timeline entry recording an exceptional condition.
type RideEvent struct {
	ID        string
	RideID    string
	Type      RideEventType
	Details   map[string]any
	CreatedAt time.Time
}
