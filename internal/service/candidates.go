package service

import (
	"context"
	"sort"

	"ridematch/internal/geo"
	"ridematch/internal/redis"
	"ridematch/internal/repository"
)

// Candidate is an eligible driver ranked for a pickup point.
type Candidate struct {
	DriverID            string    `json:"driver_id"`
	Name                string    `json:"name,omitempty"`
	Location            geo.Point `json:"location"`
	DistanceKm          float64   `json:"distance_km"`
	EstimatedArrivalMin int       `json:"estimated_arrival_min"`
}

// CandidateFinder ranks eligible drivers near a point.
type CandidateFinder struct {
	locationStore redis.LocationStoreInterface
	driverRepo    repository.DriverRepository
	limit         int
	speedKmh      float64
}

// NewCandidateFinder creates a new CandidateFinder returning at most limit
// candidates with arrival estimates at speedKmh.
func NewCandidateFinder(
	locationStore redis.LocationStoreInterface,
	driverRepo repository.DriverRepository,
	limit int,
	speedKmh float64,
) *CandidateFinder {
	return &CandidateFinder{
		locationStore: locationStore,
		driverRepo:    driverRepo,
		limit:         limit,
		speedKmh:      speedKmh,
	}
}

// Find returns up to limit active, available drivers within radiusMeters of p,
// nearest first. Equal distances are ordered by driver ID.
func (f *CandidateFinder) Find(ctx context.Context, p geo.Point, radiusMeters int) ([]Candidate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, ErrInvalidRadius
	}

	nearby, err := f.locationStore.FindNear(ctx, p, radiusMeters)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	ids := make([]string, len(nearby))
	for i, loc := range nearby {
		ids[i] = loc.DriverID
	}

	// The index only knows positions; eligibility lives with the driver record.
	eligible, err := f.driverRepo.FilterEligible(ctx, ids)
	if err != nil {
		return nil, err
	}

	radiusKm := geo.MetersToKm(radiusMeters)
	candidates := make([]Candidate, 0, len(eligible))
	for _, loc := range nearby {
		driver, ok := eligible[loc.DriverID]
		if !ok {
			continue
		}

		distance := geo.HaversineKm(loc.Location, p)
		if distance > radiusKm {
			continue
		}

		candidates = append(candidates, Candidate{
			DriverID:            driver.ID,
			Name:                driver.Name,
			Location:            loc.Location,
			DistanceKm:          distance,
			EstimatedArrivalMin: geo.ArrivalMinutes(distance, f.speedKmh),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].DriverID < candidates[j].DriverID
	})

	if f.limit > 0 && len(candidates) > f.limit {
		candidates = candidates[:f.limit]
	}
	return candidates, nil
}
