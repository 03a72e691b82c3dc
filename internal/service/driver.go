package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/redis"
	"ridematch/internal/repository"
)

// DriverService handles driver presence: location reports and going offline.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	driverRepo    repository.DriverRepository
	finder        *CandidateFinder
	defaultRadius int
	log           *slog.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	driverRepo repository.DriverRepository,
	finder *CandidateFinder,
	defaultRadius int,
	log *slog.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		driverRepo:    driverRepo,
		finder:        finder,
		defaultRadius: defaultRadius,
		log:           log,
	}
}

// UpdateLocation records a driver's position on the driver record and in
// the location index.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, p geo.Point) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	// The record is written first so unknown drivers never enter the index.
	if err := s.driverRepo.UpdateLocation(ctx, driverID, p, time.Now().UTC()); err != nil {
		return notFound(err, ErrDriverNotFound)
	}

	return s.locationStore.UpdateLocation(ctx, driverID, p)
}

// GoOffline removes a driver from the location index. Availability is left
// alone: an offline driver may still be bound to a ride.
func (s *DriverService) GoOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if _, err := s.driverRepo.GetByID(ctx, driverID); err != nil {
		return notFound(err, ErrDriverNotFound)
	}

	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "driver offline", slog.String("driver_id", driverID))
	return nil
}

// Get retrieves a driver's availability record.
func (s *DriverService) Get(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	return driver, nil
}

// Nearby lists eligible drivers around p without assigning anyone.
func (s *DriverService) Nearby(ctx context.Context, p geo.Point, radiusMeters int) ([]Candidate, error) {
	if radiusMeters < 0 {
		return nil, ErrInvalidRadius
	}
	if radiusMeters == 0 {
		radiusMeters = s.defaultRadius
	}
	return s.finder.Find(ctx, p, radiusMeters)
}
