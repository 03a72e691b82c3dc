package service

import (
	"errors"
	"fmt"
	"time"

	"ridematch/internal/geo"
	"ridematch/internal/repository"
)

var (
	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDestinationLocation is returned when destination coordinates are invalid.
	ErrInvalidDestinationLocation = errors.New("invalid destination location")

	// ErrInvalidLocation is returned when a reported driver location is invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRadius is returned when a search radius is negative.
	ErrInvalidRadius = errors.New("invalid search radius")

	// ErrInvalidStatus is returned when a requested status is unknown.
	ErrInvalidStatus = errors.New("invalid ride status")

	// ErrInvalidActor is returned when the actor id or role is missing or unknown.
	ErrInvalidActor = errors.New("invalid actor")

	// ErrRideNotFound is returned when the ride does not exist.
	ErrRideNotFound = errors.New("ride not found")

	// ErrDriverNotFound is returned when the driver does not exist.
	ErrDriverNotFound = errors.New("driver not found")

	// ErrAssignmentConflict is returned when a ride or driver claim loses a race.
	ErrAssignmentConflict = errors.New("assignment conflict")

	// ErrInvalidStatusTransition is returned when a transition is not in the lifecycle table.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrForbidden is returned when the actor is not a party to the ride.
	ErrForbidden = errors.New("actor not allowed to act on this ride")

	// ErrNoDriversAvailable is returned when every radius was searched without a match.
	ErrNoDriversAvailable = errors.New("no drivers available")
)

// Code is the public classification of a failure.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeAssignmentConflict Code = "ASSIGNMENT_CONFLICT"
	CodeInvalidTransition  Code = "INVALID_STATUS_TRANSITION"
	CodeForbidden          Code = "FORBIDDEN"
	CodeRideNotFound       Code = "RIDE_NOT_FOUND"
	CodeDriverNotFound     Code = "DRIVER_NOT_FOUND"
	CodeNoDrivers          Code = "NO_DRIVERS_AVAILABLE"
	CodeDownstream         Code = "DOWNSTREAM_FAILURE"
)

var validationErrors = []error{
	ErrInvalidRideID,
	ErrInvalidRiderID,
	ErrInvalidDriverID,
	ErrInvalidPickupLocation,
	ErrInvalidDestinationLocation,
	ErrInvalidLocation,
	ErrInvalidRadius,
	ErrInvalidStatus,
	ErrInvalidActor,
	geo.ErrInvalidLongitude,
	geo.ErrInvalidLatitude,
}

// CodeOf classifies err. Unknown errors are downstream failures.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAssignmentConflict):
		return CodeAssignmentConflict
	case errors.Is(err, ErrInvalidStatusTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRideNotFound):
		return CodeRideNotFound
	case errors.Is(err, ErrDriverNotFound):
		return CodeDriverNotFound
	case errors.Is(err, ErrNoDriversAvailable):
		return CodeNoDrivers
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return CodeValidation
		}
	}
	return CodeDownstream
}

// ConflictPhase names the step of an assignment that lost a race.
type ConflictPhase string

const (
	PhaseRide   ConflictPhase = "ride"
	PhaseDriver ConflictPhase = "driver"
)

// ConflictError reports which claim of an assignment failed.
type ConflictError struct {
	RideID   string
	DriverID string
	Phase    ConflictPhase
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("assignment conflict on %s claim (ride %s, driver %s)", e.Phase, e.RideID, e.DriverID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrAssignmentConflict
}

// ExhaustedError is returned when radius expansion ran out of radii.
type ExhaustedError struct {
	RideID            string
	MaxRadiusSearched int
	TotalDriversFound int
	At                time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no drivers available for ride %s within %dm", e.RideID, e.MaxRadiusSearched)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrNoDriversAvailable
}

// notFound maps the repository sentinel onto the domain-specific one.
func notFound(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
