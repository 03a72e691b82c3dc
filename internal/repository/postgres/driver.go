package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
// Drivers are rows of the users table with role = 'driver'.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

const driverColumns = `
	id, COALESCE(name, ''), COALESCE(phone, ''), is_active, is_available,
	current_lng, current_lat, location_updated_at, last_assigned_at, last_released_at`

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT` + driverColumns + ` FROM users WHERE id = $1 AND role = 'driver'`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// FilterEligible returns the drivers among ids that are active and available.
func (r *DriverRepository) FilterEligible(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	eligible := make(map[string]*domain.Driver, len(ids))
	if len(ids) == 0 {
		return eligible, nil
	}

	query := `SELECT` + driverColumns + `
		FROM users
		WHERE id = ANY($1) AND role = 'driver' AND is_active = TRUE AND is_available = TRUE`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		eligible[driver.ID] = driver
	}
	return eligible, rows.Err()
}

// Claim marks a driver unavailable. The availability flag is part of the
// precondition so two rides can never both claim the same driver.
func (r *DriverRepository) Claim(ctx context.Context, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_available = FALSE, last_assigned_at = $1
		WHERE id = $2 AND role = 'driver' AND is_active = TRUE AND is_available = TRUE
	`

	result, err := r.q.ExecContext(ctx, query, at, driverID)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// Release marks a driver available again.
func (r *DriverRepository) Release(ctx context.Context, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_available = TRUE, last_released_at = $1
		WHERE id = $2 AND role = 'driver'
	`

	result, err := r.q.ExecContext(ctx, query, at, driverID)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// UpdateLocation stores the driver's last reported position.
func (r *DriverRepository) UpdateLocation(ctx context.Context, driverID string, p geo.Point, at time.Time) error {
	query := `
		UPDATE users
		SET current_lng = $1, current_lat = $2, location_updated_at = $3
		WHERE id = $4 AND role = 'driver'
	`

	result, err := r.q.ExecContext(ctx, query, p.Lng, p.Lat, at, driverID)
	if err != nil {
		return err
	}

	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lng, lat sql.NullFloat64
	var locatedAt, assignedAt, releasedAt sql.NullTime

	err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.IsActive,
		&driver.IsAvailable,
		&lng,
		&lat,
		&locatedAt,
		&assignedAt,
		&releasedAt,
	)
	if err != nil {
		return nil, err
	}

	if lng.Valid && lat.Valid {
		driver.CurrentLocation = &geo.Point{Lng: lng.Float64, Lat: lat.Float64}
	}
	driver.LocationUpdatedAt = timePtr(locatedAt)
	driver.LastAssignedAt = timePtr(assignedAt)
	driver.LastReleasedAt = timePtr(releasedAt)

	return &driver, nil
}
