package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/repository"
)

// MatchingServiceInterface defines the matching service contract.
type MatchingServiceInterface interface {
	FindAndAssign(ctx context.Context, rideID string, pickup geo.Point, initialRadius int) (*MatchResult, error)
}

// Ensure MatchingService implements MatchingServiceInterface.
var _ MatchingServiceInterface = (*MatchingService)(nil)

// MatchingService widens the candidate search over a fixed list of radii
// and offers the ride to candidates nearest first.
type MatchingService struct {
	finder        *CandidateFinder
	coordinator   *AssignmentCoordinator
	rideRepo      repository.RideRepository
	radii         []int
	defaultRadius int
	log           *slog.Logger
}

// NewMatchingService creates a new MatchingService. radii must be ascending.
func NewMatchingService(
	finder *CandidateFinder,
	coordinator *AssignmentCoordinator,
	rideRepo repository.RideRepository,
	radii []int,
	defaultRadius int,
	log *slog.Logger,
) *MatchingService {
	return &MatchingService{
		finder:        finder,
		coordinator:   coordinator,
		rideRepo:      rideRepo,
		radii:         radii,
		defaultRadius: defaultRadius,
		log:           log,
	}
}

// MatchResult contains the result of a successful match.
type MatchResult struct {
	RideID             string    `json:"ride_id"`
	Driver             Candidate `json:"driver"`
	SearchRadius       int       `json:"search_radius"`
	TotalDriversFound  int       `json:"total_drivers_found"`
	FallbackAssignment bool      `json:"fallback_assignment"`
	AssignedAt         time.Time `json:"assigned_at"`
}

// FindAndAssign searches for a driver for a requested ride and binds the
// first candidate whose claim succeeds.
//
// A conflict on the ride claim means the ride was cancelled or assigned
// elsewhere and ends the search. A conflict on the driver claim only skips
// that candidate. When every radius is exhausted the ride stays requested
// and an *ExhaustedError is returned; retrying is the caller's decision.
func (s *MatchingService) FindAndAssign(ctx context.Context, rideID string, pickup geo.Point, initialRadius int) (*MatchResult, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if err := pickup.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPickupLocation, err)
	}
	if initialRadius < 0 {
		return nil, ErrInvalidRadius
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, ErrRideNotFound)
	}
	if ride.Status != domain.RideStatusRequested || ride.HasDriver() {
		return nil, &ConflictError{RideID: rideID, Phase: PhaseRide}
	}

	radii := s.radiiFrom(initialRadius)
	log := s.log.With(slog.String("ride_id", rideID))

	found := 0
	for i, radius := range radii {
		candidates, err := s.finder.Find(ctx, pickup, radius)
		if err != nil {
			return nil, err
		}
		found = len(candidates)

		log.DebugContext(ctx, "candidate search",
			slog.Int("radius_m", radius),
			slog.Int("candidates", len(candidates)),
		)

		for _, candidate := range candidates {
			assignment, err := s.coordinator.Assign(ctx, rideID, candidate.DriverID)
			if err == nil {
				return &MatchResult{
					RideID:             rideID,
					Driver:             candidate,
					SearchRadius:       radius,
					TotalDriversFound:  len(candidates),
					FallbackAssignment: i > 0,
					AssignedAt:         assignment.AssignedAt,
				}, nil
			}

			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				return nil, err
			}
			if conflict.Phase == PhaseRide {
				log.InfoContext(ctx, "ride no longer assignable, stopping search", slog.Int("radius_m", radius))
				return nil, err
			}
			log.DebugContext(ctx, "driver taken, trying next candidate", slog.String("driver_id", candidate.DriverID))
		}
	}

	exhausted := &ExhaustedError{
		RideID:            rideID,
		MaxRadiusSearched: radii[len(radii)-1],
		TotalDriversFound: found,
		At:                time.Now().UTC(),
	}
	log.InfoContext(ctx, "no drivers available", slog.Int("max_radius_m", exhausted.MaxRadiusSearched))
	return nil, exhausted
}

// radiiFrom returns the expansion radii not smaller than initial. A zero
// initial radius uses the default; one wider than every expansion radius is
// searched on its own.
func (s *MatchingService) radiiFrom(initial int) []int {
	if initial == 0 {
		initial = s.defaultRadius
	}

	var radii []int
	for _, r := range s.radii {
		if r >= initial {
			radii = append(radii, r)
		}
	}
	if len(radii) == 0 {
		radii = []int{initial}
	}
	return radii
}
