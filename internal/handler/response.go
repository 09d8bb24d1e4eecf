package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"toda/internal/repository"
	"toda/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrUnknownRFID),
		errors.Is(err, service.ErrDriverNotQueued):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidFare),
		errors.Is(err, service.ErrInvalidRFID),
		errors.Is(err, service.ErrInvalidPaymentMode),
		errors.Is(err, service.ErrInvalidDiscountType):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrStateConflict),
		errors.Is(err, service.ErrRFIDInUse),
		errors.Is(err, service.ErrBookingNotPending),
		errors.Is(err, service.ErrMatchInProgress),
		errors.Is(err, service.ErrDriverAlreadyQueued),
		errors.Is(err, service.ErrDriverHasActiveBooking),
		errors.Is(err, service.ErrBookingNotAccepted),
		errors.Is(err, service.ErrBookingNotAtPickup),
		errors.Is(err, service.ErrTripCannotStart),
		errors.Is(err, service.ErrTripNotInProgress),
		errors.Is(err, service.ErrNoShowWindowOpen),
		errors.Is(err, service.ErrBookingFinished),
		errors.Is(err, service.ErrTripInProgress):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDriverNotAssigned),
		errors.Is(err, service.ErrDriverCannotGoOnline):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrNoDriverAvailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
