package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"toda/internal/domain"
	"toda/internal/repository"
	"toda/internal/service"
)

// PassengerHandler handles HTTP requests for passengers.
type PassengerHandler struct {
	passengerRepo repository.PassengerRepository
}

// NewPassengerHandler creates a new PassengerHandler.
func NewPassengerHandler(passengerRepo repository.PassengerRepository) *PassengerHandler {
	return &PassengerHandler{passengerRepo: passengerRepo}
}

// RegisterPassengerRequest is the HTTP request body for passenger registration.
type RegisterPassengerRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	DiscountType string `json:"discount_type,omitempty"`
}

// UpdateDiscountRequest is the HTTP request body for setting a discount.
type UpdateDiscountRequest struct {
	DiscountType string `json:"discount_type"`
	Verified     bool   `json:"verified"`
}

// PassengerResponse is the HTTP response for passenger data.
type PassengerResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	DiscountType     string `json:"discount_type,omitempty"`
	DiscountVerified bool   `json:"discount_verified"`
}

// FeeResponse is the HTTP response for a passenger's convenience fee.
type FeeResponse struct {
	PassengerID    string  `json:"passenger_id"`
	ConvenienceFee float64 `json:"convenience_fee"`
}

func toPassengerResponse(p *domain.Passenger) PassengerResponse {
	return PassengerResponse{
		ID:               p.ID,
		Name:             p.Name,
		Phone:            p.Phone,
		DiscountType:     string(p.DiscountType),
		DiscountVerified: p.DiscountVerified,
	}
}

// Register handles POST /v1/passengers/register
func (h *PassengerHandler) Register(c *gin.Context) {
	var req RegisterPassengerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	discount, err := service.ValidateDiscountType(req.DiscountType)
	if err != nil {
		respondError(c, err)
		return
	}

	// Check if passenger already exists
	existing, err := h.passengerRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message":   "Passenger already registered",
			"passenger": toPassengerResponse(existing),
		})
		return
	}

	// Discounts start unverified until an operator checks the ID.
	passenger := &domain.Passenger{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Phone:        req.Phone,
		DiscountType: discount,
		CreatedAt:    time.Now(),
	}

	if err := h.passengerRepo.Create(c.Request.Context(), passenger); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPassengerResponse(passenger))
}

// GetAll handles GET /v1/passengers
func (h *PassengerHandler) GetAll(c *gin.Context) {
	passengers, err := h.passengerRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PassengerResponse, 0, len(passengers))
	for _, p := range passengers {
		response = append(response, toPassengerResponse(p))
	}

	c.JSON(http.StatusOK, response)
}

// UpdateDiscount handles PUT /v1/passengers/:id/discount
func (h *PassengerHandler) UpdateDiscount(c *gin.Context) {
	passengerID := c.Param("id")

	var req UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	discount, err := service.ValidateDiscountType(req.DiscountType)
	if err != nil {
		respondError(c, err)
		return
	}

	verified := req.Verified && discount != ""
	if err := h.passengerRepo.UpdateDiscount(c.Request.Context(), passengerID, discount, verified); err != nil {
		respondError(c, err)
		return
	}

	passenger, err := h.passengerRepo.GetByID(c.Request.Context(), passengerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPassengerResponse(passenger))
}

// GetFee handles GET /v1/passengers/:id/fee
func (h *PassengerHandler) GetFee(c *gin.Context) {
	passengerID := c.Param("id")

	passenger, err := h.passengerRepo.GetByID(c.Request.Context(), passengerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, FeeResponse{
		PassengerID:    passenger.ID,
		ConvenienceFee: service.ConvenienceFee(passenger),
	})
}
