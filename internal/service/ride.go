package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/notify"
	"ridematch/internal/repository"
)

// MatchScheduler runs a driver search for a ride outside the request path.
type MatchScheduler interface {
	Schedule(ride *domain.Ride, initialRadius int)
}

// RideService handles ride booking and lifecycle transitions.
type RideService struct {
	rideRepo    repository.RideRepository
	coordinator *AssignmentCoordinator
	scheduler   MatchScheduler
	notifier    notify.Notifier
	log         *slog.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	coordinator *AssignmentCoordinator,
	scheduler MatchScheduler,
	notifier notify.Notifier,
	log *slog.Logger,
) *RideService {
	return &RideService{
		rideRepo:    rideRepo,
		coordinator: coordinator,
		scheduler:   scheduler,
		notifier:    notifier,
		log:         log,
	}
}

// BookRequest contains the parameters for booking a ride.
type BookRequest struct {
	RiderID      string
	Pickup       geo.Point
	Destination  geo.Point
	FareEstimate float64 // Provided by the pricing collaborator
	SearchRadius int     // Optional: 0 uses the default radius
}

// Book creates a ride in requested state and schedules the driver search.
// It returns as soon as the ride is stored.
func (s *RideService) Book(ctx context.Context, req BookRequest) (*domain.Ride, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if err := req.Pickup.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPickupLocation, err)
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDestinationLocation, err)
	}
	if req.SearchRadius < 0 {
		return nil, ErrInvalidRadius
	}

	ride := &domain.Ride{
		ID:           uuid.New().String(),
		RiderID:      req.RiderID,
		Status:       domain.RideStatusRequested,
		Pickup:       req.Pickup,
		Destination:  req.Destination,
		FareEstimate: req.FareEstimate,
		RequestedAt:  time.Now().UTC(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "ride requested",
		slog.String("ride_id", ride.ID),
		slog.String("rider_id", ride.RiderID),
	)

	s.scheduler.Schedule(ride, req.SearchRadius)
	return ride, nil
}

// Get retrieves a ride by ID.
func (s *RideService) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	return ride, nil
}

// List returns the most recent rides.
func (s *RideService) List(ctx context.Context) ([]*domain.Ride, error) {
	return s.rideRepo.GetAll(ctx)
}

// TransitionRequest contains the parameters for a status change.
type TransitionRequest struct {
	RideID    string
	To        domain.RideStatus
	ActorID   string
	ActorRole domain.Role
	Reason    string // Optional, kept for cancellations
}

// Transition moves a ride to req.To on behalf of an actor.
//
// The actor must be a party to the ride (its rider or bound driver) or an
// admin or system actor; then the edge must be allowed for the actor's role.
// The update is conditional on the status read here, so a concurrent change
// makes this call fail instead of overwriting it. Entering a terminal status
// with a bound driver releases that driver; a failed release is recorded but
// never undoes the transition.
func (s *RideService) Transition(ctx context.Context, req TransitionRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if _, ok := domain.ParseRideStatus(string(req.To)); !ok {
		return nil, ErrInvalidStatus
	}
	if _, ok := domain.ParseRole(string(req.ActorRole)); !ok || req.ActorID == "" {
		return nil, ErrInvalidActor
	}

	ride, err := s.Get(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if !isParty(ride, req.ActorID, req.ActorRole) {
		return nil, ErrForbidden
	}

	from := ride.Status
	if !domain.CanTransition(from, req.To, req.ActorRole) {
		return nil, fmt.Errorf("%w: %s -> %s as %s", ErrInvalidStatusTransition, from, req.To, req.ActorRole)
	}
	// Drivers are bound only by assignment, never by a status change.
	if domain.RequiresDriver(req.To) && !ride.HasDriver() {
		return nil, fmt.Errorf("%w: %s requires a bound driver", ErrInvalidStatusTransition, req.To)
	}

	now := time.Now().UTC()
	change := repository.StatusChange{
		RideID:   ride.ID,
		From:     from,
		DriverID: ride.DriverID,
		To:       req.To,
		At:       now,
	}
	if req.To == domain.RideStatusCancelled {
		change.CancelledBy = req.ActorID
		change.Reason = req.Reason
	}

	changed, err := s.rideRepo.ChangeStatus(ctx, change)
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.Get(ctx, req.RideID)
		if err != nil {
			return nil, err
		}
		if current.Status == from {
			return nil, fmt.Errorf("%w: ride was reassigned while %s", ErrInvalidStatusTransition, from)
		}
		return nil, fmt.Errorf("%w: ride moved from %s to %s", ErrInvalidStatusTransition, from, current.Status)
	}

	applyStatus(ride, change)

	s.log.InfoContext(ctx, "ride status changed",
		slog.String("ride_id", ride.ID),
		slog.String("from", string(from)),
		slog.String("to", string(ride.Status)),
		slog.String("actor_role", string(req.ActorRole)),
	)

	if ride.Status.IsTerminal() && ride.HasDriver() {
		s.releaseDriver(ctx, ride)
	}

	s.notifier.StatusChanged(ctx, notify.Event{
		Type:           notify.EventStatusChanged,
		RideID:         ride.ID,
		RiderID:        ride.RiderID,
		DriverID:       ride.DriverID,
		Status:         ride.Status,
		PreviousStatus: from,
		ActorID:        req.ActorID,
		ActorRole:      req.ActorRole,
		Reason:         req.Reason,
		Timestamp:      now,
	})

	return ride, nil
}

// Cancel cancels a ride on behalf of an actor.
func (s *RideService) Cancel(ctx context.Context, rideID, actorID string, role domain.Role, reason string) (*domain.Ride, error) {
	return s.Transition(ctx, TransitionRequest{
		RideID:    rideID,
		To:        domain.RideStatusCancelled,
		ActorID:   actorID,
		ActorRole: role,
		Reason:    reason,
	})
}

// RecordNoDrivers appends the no-drivers entry to a ride's timeline. The ride
// status is not touched.
func (s *RideService) RecordNoDrivers(ctx context.Context, exhausted *ExhaustedError) error {
	return recordExhaustion(ctx, s.rideRepo, exhausted)
}

func (s *RideService) releaseDriver(ctx context.Context, ride *domain.Ride) {
	err := s.coordinator.Release(ctx, ride.DriverID)
	if err == nil {
		return
	}

	s.log.ErrorContext(ctx, "driver release failed",
		slog.String("ride_id", ride.ID),
		slog.String("driver_id", ride.DriverID),
		slog.Any("error", err),
	)

	event := &domain.RideEvent{
		ID:     uuid.New().String(),
		RideID: ride.ID,
		Type:   domain.RideEventDriverReleaseFailed,
		Details: map[string]any{
			"driver_id": ride.DriverID,
			"status":    string(ride.Status),
			"error":     err.Error(),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.rideRepo.AppendEvent(context.WithoutCancel(ctx), event); err != nil {
		s.log.ErrorContext(ctx, "failed to record release failure",
			slog.String("ride_id", ride.ID),
			slog.Any("error", err),
		)
	}
}

func recordExhaustion(ctx context.Context, rideRepo repository.RideRepository, exhausted *ExhaustedError) error {
	return rideRepo.AppendEvent(ctx, &domain.RideEvent{
		ID:     uuid.New().String(),
		RideID: exhausted.RideID,
		Type:   domain.RideEventNoDriversAvailable,
		Details: map[string]any{
			"max_radius_searched": exhausted.MaxRadiusSearched,
			"total_drivers_found": exhausted.TotalDriversFound,
			"searched_at":         exhausted.At,
		},
		CreatedAt: time.Now().UTC(),
	})
}

// isParty reports whether the actor may act on the ride at all.
func isParty(ride *domain.Ride, actorID string, role domain.Role) bool {
	switch role {
	case domain.RoleAdmin, domain.RoleSystem:
		return true
	case domain.RoleRider:
		return ride.RiderID == actorID
	case domain.RoleDriver:
		return ride.HasDriver() && ride.DriverID == actorID
	}
	return false
}

func applyStatus(ride *domain.Ride, change repository.StatusChange) {
	at := change.At
	ride.Status = change.To
	switch change.To {
	case domain.RideStatusMatched:
		ride.MatchedAt = &at
	case domain.RideStatusAccepted:
		ride.AcceptedAt = &at
	case domain.RideStatusInProgress:
		ride.StartedAt = &at
	case domain.RideStatusCompleted:
		ride.CompletedAt = &at
	case domain.RideStatusCancelled:
		ride.CancelledAt = &at
		ride.CancelledBy = change.CancelledBy
		ride.CancelReason = change.Reason
	}
}
