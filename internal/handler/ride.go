package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/middleware"
	"ridematch/internal/service"
)

const timeLayout = time.RFC3339

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
	matcher     service.MatchingServiceInterface
	coordinator *service.AssignmentCoordinator
	log         *slog.Logger
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(
	rideService *service.RideService,
	matcher service.MatchingServiceInterface,
	coordinator *service.AssignmentCoordinator,
	log *slog.Logger,
) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		matcher:     matcher,
		coordinator: coordinator,
		log:         log,
	}
}

// PointRequest is a longitude/latitude pair in a request body.
type PointRequest struct {
	Longitude *float64 `json:"longitude" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
}

func (p PointRequest) point() geo.Point {
	return geo.Point{Lng: *p.Longitude, Lat: *p.Latitude}
}

// CreateRideRequest is the HTTP request body for booking a ride.
type CreateRideRequest struct {
	Pickup       PointRequest `json:"pickup" binding:"required"`
	Destination  PointRequest `json:"destination" binding:"required"`
	FareEstimate float64      `json:"fare_estimate"`
	SearchRadius int          `json:"search_radius,omitempty"`
}

// TransitionRequest is the HTTP request body for a status change.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// MatchRequest is the HTTP request body for a synchronous driver search.
type MatchRequest struct {
	SearchRadius int `json:"search_radius,omitempty"`
}

// AssignRequest is the HTTP request body for a direct assignment.
type AssignRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// RideResponse is the HTTP response for ride data.
type RideResponse struct {
	ID           string     `json:"id"`
	RiderID      string     `json:"rider_id"`
	DriverID     string     `json:"driver_id,omitempty"`
	Status       string     `json:"status"`
	Pickup       geo.Point  `json:"pickup"`
	Destination  geo.Point  `json:"destination"`
	FareEstimate float64    `json:"fare_estimate"`
	FinalFare    *float64   `json:"final_fare,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	MatchedAt    *time.Time `json:"matched_at,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// MatchResponse is the HTTP response for a successful driver search.
type MatchResponse struct {
	Success bool `json:"success"`
	*service.MatchResult
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:           r.ID,
		RiderID:      r.RiderID,
		DriverID:     r.DriverID,
		Status:       string(r.Status),
		Pickup:       r.Pickup,
		Destination:  r.Destination,
		FareEstimate: r.FareEstimate,
		FinalFare:    r.FinalFare,
		RequestedAt:  r.RequestedAt,
		MatchedAt:    r.MatchedAt,
		AcceptedAt:   r.AcceptedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		CancelledAt:  r.CancelledAt,
		CancelledBy:  r.CancelledBy,
		CancelReason: r.CancelReason,
	}
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "pickup and destination with longitude and latitude are required")
		return
	}

	riderID, _ := middleware.Actor(c)
	ride, err := h.rideService.Book(c.Request.Context(), service.BookRequest{
		RiderID:      riderID,
		Pickup:       req.Pickup.point(),
		Destination:  req.Destination.point(),
		FareEstimate: req.FareEstimate,
		SearchRadius: req.SearchRadius,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetAll handles GET /v1/rides
func (h *RideHandler) GetAll(c *gin.Context) {
	rides, err := h.rideService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, ok := h.loadForActor(c)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// Transition handles POST /v1/rides/:id/transition
func (h *RideHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	status, ok := domain.ParseRideStatus(req.Status)
	if !ok {
		respondError(c, service.ErrInvalidStatus)
		return
	}

	actorID, role := middleware.Actor(c)
	ride, err := h.rideService.Transition(c.Request.Context(), service.TransitionRequest{
		RideID:    c.Param("id"),
		To:        status,
		ActorID:   actorID,
		ActorRole: role,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	actorID, role := middleware.Actor(c)
	ride, err := h.rideService.Cancel(c.Request.Context(), c.Param("id"), actorID, role, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// Match handles POST /v1/rides/:id/match
//
// It runs the driver search synchronously so a rider or operator can retry
// after a previous search found nobody.
func (h *RideHandler) Match(c *gin.Context) {
	var req MatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	ride, ok := h.loadForActor(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	result, err := h.matcher.FindAndAssign(ctx, ride.ID, ride.Pickup, req.SearchRadius)
	if err != nil {
		var exhausted *service.ExhaustedError
		if errors.As(err, &exhausted) {
			if recErr := h.rideService.RecordNoDrivers(ctx, exhausted); recErr != nil {
				h.log.WarnContext(ctx, "failed to record no-drivers event",
					slog.String("ride_id", ride.ID),
					slog.Any("error", recErr),
				)
			}
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, MatchResponse{Success: true, MatchResult: result})
}

// Assign handles POST /v1/rides/:id/assign
func (h *RideHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "driver_id is required")
		return
	}

	assignment, err := h.coordinator.Assign(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"success": true, "assignment": assignment})
}

// loadForActor fetches the ride in the path and checks that the actor is
// one of its parties. It writes the error response itself.
func (h *RideHandler) loadForActor(c *gin.Context) (*domain.Ride, bool) {
	ride, err := h.rideService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	actorID, role := middleware.Actor(c)
	switch role {
	case domain.RoleAdmin, domain.RoleSystem:
		return ride, true
	case domain.RoleRider:
		if ride.RiderID == actorID {
			return ride, true
		}
	case domain.RoleDriver:
		if ride.HasDriver() && ride.DriverID == actorID {
			return ride, true
		}
	}

	respondError(c, service.ErrForbidden)
	return nil, false
}
