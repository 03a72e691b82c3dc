// Package notify broadcasts ride lifecycle events. Delivery is fire-and-forget:
// callers never wait for, or learn about, delivery failures.
package notify

import (
	"context"
	"time"

	"ridematch/internal/domain"
)

// EventType names a lifecycle broadcast.
type EventType string

const (
	EventRideAssigned  EventType = "ride.assigned"
	EventStatusChanged EventType = "ride.status_changed"
)

// Event is the payload delivered to riders, drivers and downstream consumers.
type Event struct {
	Type           EventType         `json:"type"`
	RideID         string            `json:"ride_id"`
	RiderID        string            `json:"rider_id,omitempty"`
	DriverID       string            `json:"driver_id,omitempty"`
	Status         domain.RideStatus `json:"status"`
	PreviousStatus domain.RideStatus `json:"previous_status,omitempty"`
	ActorID        string            `json:"actor_id,omitempty"`
	ActorRole      domain.Role       `json:"actor_role,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Notifier receives lifecycle events.
type Notifier interface {
	RideAssigned(ctx context.Context, e Event)
	StatusChanged(ctx context.Context, e Event)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

// RideAssigned implements Notifier.
func (m Multi) RideAssigned(ctx context.Context, e Event) {
	for _, n := range m {
		n.RideAssigned(ctx, e)
	}
}

// StatusChanged implements Notifier.
func (m Multi) StatusChanged(ctx context.Context, e Event) {
	for _, n := range m {
		n.StatusChanged(ctx, e)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) RideAssigned(context.Context, Event)  {}
func (Nop) StatusChanged(context.Context, Event) {}
