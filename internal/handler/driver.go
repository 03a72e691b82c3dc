package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridematch/internal/domain"
	"ridematch/internal/geo"
	"ridematch/internal/middleware"
	"ridematch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	coordinator   *service.AssignmentCoordinator
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, coordinator *service.AssignmentCoordinator) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		coordinator:   coordinator,
	}
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	IsActive          bool       `json:"is_active"`
	IsAvailable       bool       `json:"is_available"`
	CurrentLocation   *geo.Point `json:"current_location,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
}

// NearbyResponse is the HTTP response for a nearby driver listing.
type NearbyResponse struct {
	Radius  int                 `json:"radius"`
	Count   int                 `json:"count"`
	Drivers []service.Candidate `json:"drivers"`
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driverID := c.Param("id")
	if !selfOrOperator(c, driverID) {
		return
	}

	driver, err := h.driverService.Get(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverResponse{
		ID:                driver.ID,
		Name:              driver.Name,
		Phone:             driver.Phone,
		IsActive:          driver.IsActive,
		IsAvailable:       driver.IsAvailable,
		CurrentLocation:   driver.CurrentLocation,
		LocationUpdatedAt: driver.LocationUpdatedAt,
	})
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID := c.Param("id")
	if !selfOrOperator(c, driverID) {
		return
	}

	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "longitude and latitude are required")
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), driverID, req.point()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"success": true})
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	driverID := c.Param("id")
	if !selfOrOperator(c, driverID) {
		return
	}

	if err := h.driverService.GoOffline(c.Request.Context(), driverID); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"success": true})
}

// Release handles POST /v1/drivers/:id/release
func (h *DriverHandler) Release(c *gin.Context) {
	if err := h.coordinator.Release(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"success": true})
}

// Nearby handles GET /v1/drivers/nearby?longitude=&latitude=&radius=
func (h *DriverHandler) Nearby(c *gin.Context) {
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	if errLng != nil || errLat != nil {
		respondBadRequest(c, "longitude and latitude query parameters are required")
		return
	}

	radius := 0
	if raw := c.Query("radius"); raw != "" {
		r, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "radius must be an integer number of meters")
			return
		}
		radius = r
	}

	drivers, err := h.driverService.Nearby(c.Request.Context(), geo.Point{Lng: lng, Lat: lat}, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	if drivers == nil {
		drivers = []service.Candidate{}
	}

	respondJSON(c, http.StatusOK, NearbyResponse{Radius: radius, Count: len(drivers), Drivers: drivers})
}

// selfOrOperator allows a driver to act on their own record, and admins or
// the system on any. It writes the error response itself.
func selfOrOperator(c *gin.Context, driverID string) bool {
	actorID, role := middleware.Actor(c)
	switch {
	case role == domain.RoleAdmin, role == domain.RoleSystem:
		return true
	case role == domain.RoleDriver && actorID == driverID:
		return true
	}
	respondError(c, service.ErrForbidden)
	return false
}
