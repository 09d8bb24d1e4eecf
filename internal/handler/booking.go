package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"toda/internal/domain"
	"toda/internal/service"
)

// BookingHandler handles HTTP requests for bookings and their trips.
type BookingHandler struct {
	bookingService  *service.BookingService
	matchingService service.MatchingServiceInterface
	tripService     *service.TripService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(
	bookingService *service.BookingService,
	matchingService service.MatchingServiceInterface,
	tripService *service.TripService,
) *BookingHandler {
	return &BookingHandler{
		bookingService:  bookingService,
		matchingService: matchingService,
		tripService:     tripService,
	}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	CustomerID     string  `json:"customer_id"`
	CustomerName   string  `json:"customer_name,omitempty"`
	PickupLocation string  `json:"pickup_location"`
	Destination    string  `json:"destination"`
	Fare           float64 `json:"fare"`
}

// DriverActionRequest is the HTTP request body for driver-side trip actions.
type DriverActionRequest struct {
	DriverID string `json:"driver_id"`
}

// CancelBookingRequest is the HTTP request body for cancelling a booking.
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BookingResponse is the HTTP response for booking data.
type BookingResponse struct {
	ID                  string  `json:"id"`
	CustomerID          string  `json:"customer_id"`
	CustomerName        string  `json:"customer_name,omitempty"`
	PickupLocation      string  `json:"pickup_location"`
	Destination         string  `json:"destination"`
	Fare                float64 `json:"fare"`
	ConvenienceFee      float64 `json:"convenience_fee"`
	Status              string  `json:"status"`
	AssignedDriverID    string  `json:"assigned_driver_id,omitempty"`
	DriverRFID          string  `json:"driver_rfid,omitempty"`
	DriverName          string  `json:"driver_name,omitempty"`
	TodaNumber          string  `json:"toda_number,omitempty"`
	TricycleNumber      string  `json:"tricycle_number,omitempty"`
	PaymentMode         string  `json:"payment_mode,omitempty"`
	ArrivedAtPickup     bool    `json:"arrived_at_pickup"`
	ArrivedAtPickupTime string  `json:"arrived_at_pickup_time,omitempty"`
	CreatedAt           string  `json:"created_at"`
	CompletedAt         string  `json:"completed_at,omitempty"`
	CancelReason        string  `json:"cancel_reason,omitempty"`
}

// CreateBookingResponse is the HTTP response for creating a booking.
type CreateBookingResponse struct {
	BookingResponse
	DriverAssigned bool `json:"driver_assigned"`
}

// CompleteTripResponse is the HTTP response for completing a trip.
type CompleteTripResponse struct {
	Booking      BookingResponse      `json:"booking"`
	Contribution ContributionResponse `json:"contribution"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:                  b.ID,
		CustomerID:          b.CustomerID,
		CustomerName:        b.CustomerName,
		PickupLocation:      b.PickupLocation,
		Destination:         b.Destination,
		Fare:                b.Fare,
		ConvenienceFee:      b.ConvenienceFee,
		Status:              string(b.Status),
		AssignedDriverID:    b.AssignedDriverID,
		DriverRFID:          b.DriverRFID,
		DriverName:          b.DriverName,
		TodaNumber:          b.TodaNumber,
		TricycleNumber:      b.TricycleNumber,
		PaymentMode:         string(b.PaymentMode),
		ArrivedAtPickup:     b.ArrivedAtPickup,
		ArrivedAtPickupTime: formatTime(b.ArrivedAtPickupTime),
		CreatedAt:           formatTime(b.Timestamp),
		CompletedAt:         formatTime(b.CompletedAt),
		CancelReason:        b.CancelReason,
	}
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		PickupLocation: req.PickupLocation,
		Destination:    req.Destination,
		Fare:           req.Fare,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateBookingResponse{
		BookingResponse: toBookingResponse(result.Booking),
		DriverAssigned:  result.DriverAssigned,
	})
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings?status=PENDING&limit=50
func (h *BookingHandler) ListBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), domain.BookingStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}

	respondJSON(c, http.StatusOK, response)
}

// Match handles POST /v1/bookings/:id/match
func (h *BookingHandler) Match(c *gin.Context) {
	result, err := h.matchingService.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(result.Booking))
}

// Arrive handles POST /v1/bookings/:id/arrive
func (h *BookingHandler) Arrive(c *gin.Context) {
	h.driverAction(c, h.tripService.MarkArrived)
}

// Start handles POST /v1/bookings/:id/start
func (h *BookingHandler) Start(c *gin.Context) {
	h.driverAction(c, h.tripService.StartTrip)
}

// NoShow handles POST /v1/bookings/:id/no-show
func (h *BookingHandler) NoShow(c *gin.Context) {
	h.driverAction(c, h.tripService.ReportNoShow)
}

// Complete handles POST /v1/bookings/:id/complete
func (h *BookingHandler) Complete(c *gin.Context) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.tripService.CompleteTrip(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	ct := result.Contribution
	respondJSON(c, http.StatusOK, CompleteTripResponse{
		Booking: toBookingResponse(result.Booking),
		Contribution: ContributionResponse{
			ID:          ct.ID,
			BookingID:   ct.BookingID,
			Amount:      ct.Amount,
			PaymentMode: string(ct.PaymentMode),
			Paid:        ct.Paid,
			CreatedAt:   formatTime(ct.CreatedAt),
		},
	})
}

// Cancel handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req CancelBookingRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

type driverActionFunc func(ctx context.Context, bookingID, driverID string) (*domain.Booking, error)

func (h *BookingHandler) driverAction(c *gin.Context, action driverActionFunc) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := action(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}
