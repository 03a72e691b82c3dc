package domain

import (
	"time"

	"ridematch/internal/geo"
)

// Driver is the availability view of a user with the driver role.
type Driver struct {
	ID          string
	Name        string
	Phone       string
	IsActive    bool // administrative eligibility
	IsAvailable bool // not bound to an active ride

	CurrentLocation   *geo.Point
	LocationUpdatedAt *time.Time
	LastAssignedAt    *time.Time
	LastReleasedAt    *time.Time
}

// Eligible reports whether the driver may be offered a new ride.
func (d *Driver) Eligible() bool {
	return d.IsActive && d.IsAvailable
}
