package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ridematch/internal/domain"
	"ridematch/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

var _ repository.RideRepository = (*RideRepository)(nil)

const rideColumns = `
	id, rider_id, driver_id, status,
	pickup_lng, pickup_lat, destination_lng, destination_lat,
	fare_estimate, final_fare,
	requested_at, matched_at, accepted_at, started_at, completed_at, cancelled_at,
	cancelled_by, cancel_reason`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, driver_id, status, pickup_lng, pickup_lat, destination_lng, destination_lat, fare_estimate, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		nullString(ride.DriverID),
		ride.Status,
		ride.Pickup.Lng,
		ride.Pickup.Lat,
		ride.Destination.Lng,
		ride.Destination.Lat,
		ride.FareEstimate,
		ride.RequestedAt,
	)
	return translateError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return ride, nil
}

// GetAll retrieves the most recent rides.
func (r *RideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT` + rideColumns + ` FROM rides ORDER BY requested_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// ClaimForDriver binds driverID to a ride that is still requested and unassigned.
func (r *RideRepository) ClaimForDriver(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, matched_at = $3, accepted_at = $3
		WHERE id = $4 AND status = $5 AND driver_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.RideStatusAccepted,
		driverID,
		at,
		rideID,
		domain.RideStatusRequested,
	)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// RevertClaim restores a claimed ride to requested. Only the claim made by
// driverID is reverted, so a later claim by someone else is never undone.
func (r *RideRepository) RevertClaim(ctx context.Context, rideID, driverID string) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1, driver_id = NULL, matched_at = NULL, accepted_at = NULL
		WHERE id = $2 AND driver_id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.RideStatusRequested,
		rideID,
		driverID,
		domain.RideStatusAccepted,
	)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// ChangeStatus moves a ride between statuses if it is still in change.From
// with the same driver bound.
func (r *RideRepository) ChangeStatus(ctx context.Context, change repository.StatusChange) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1,
			matched_at   = CASE WHEN $1 = 'matched'     THEN $2 ELSE matched_at END,
			accepted_at  = CASE WHEN $1 = 'accepted'    THEN $2 ELSE accepted_at END,
			started_at   = CASE WHEN $1 = 'in_progress' THEN $2 ELSE started_at END,
			completed_at = CASE WHEN $1 = 'completed'   THEN $2 ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled'   THEN $2 ELSE cancelled_at END,
			cancelled_by = CASE WHEN $1 = 'cancelled'   THEN $3 ELSE cancelled_by END,
			cancel_reason = CASE WHEN $1 = 'cancelled'  THEN $4 ELSE cancel_reason END
		WHERE id = $5 AND status = $6 AND driver_id IS NOT DISTINCT FROM $7
	`

	result, err := r.q.ExecContext(ctx, query,
		string(change.To),
		change.At,
		nullString(change.CancelledBy),
		nullString(change.Reason),
		change.RideID,
		string(change.From),
		nullString(change.DriverID),
	)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// AppendEvent adds an entry to the ride's timeline.
func (r *RideRepository) AppendEvent(ctx context.Context, event *domain.RideEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}

	query := `INSERT INTO ride_events (id, ride_id, event_type, details, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = r.q.ExecContext(ctx, query, event.ID, event.RideID, event.Type, details, event.CreatedAt)
	return translateError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelledBy, cancelReason sql.NullString
	var finalFare sql.NullFloat64
	var matchedAt, acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Status,
		&ride.Pickup.Lng,
		&ride.Pickup.Lat,
		&ride.Destination.Lng,
		&ride.Destination.Lat,
		&ride.FareEstimate,
		&finalFare,
		&ride.RequestedAt,
		&matchedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.CancelledBy = cancelledBy.String
	ride.CancelReason = cancelReason.String
	if finalFare.Valid {
		v := finalFare.Float64
		ride.FinalFare = &v
	}
	ride.MatchedAt = timePtr(matchedAt)
	ride.AcceptedAt = timePtr(acceptedAt)
	ride.StartedAt = timePtr(startedAt)
	ride.CompletedAt = timePtr(completedAt)
	ride.CancelledAt = timePtr(cancelledAt)

	return &ride, nil
}
