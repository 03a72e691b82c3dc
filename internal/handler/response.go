package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridematch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   service.Code `json:"error"`
	Message string       `json:"message"`
}

// NoDriversResponse is the error response of an exhausted driver search.
type NoDriversResponse struct {
	ErrorResponse
	MaxRadiusSearched int    `json:"max_radius_searched"`
	SearchedAt        string `json:"searched_at"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	status := mapErrorToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := ErrorResponse{Error: code, Message: err.Error()}
	if code == service.CodeDownstream {
		body.Message = "internal error"
	}

	var exhausted *service.ExhaustedError
	if errors.As(err, &exhausted) {
		c.JSON(status, NoDriversResponse{
			ErrorResponse:     body,
			MaxRadiusSearched: exhausted.MaxRadiusSearched,
			SearchedAt:        exhausted.At.Format(timeLayout),
		})
		return
	}

	c.JSON(status, body)
}

// respondBadRequest rejects a malformed request body.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: service.CodeValidation, Message: message})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps error codes to HTTP status codes.
func mapErrorToHTTPStatus(code service.Code) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeRideNotFound, service.CodeDriverNotFound:
		return http.StatusNotFound
	case service.CodeAssignmentConflict, service.CodeInvalidTransition:
		return http.StatusConflict
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeNoDrivers:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
