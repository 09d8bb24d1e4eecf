package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"toda/internal/domain"
	"toda/internal/repository"
	"toda/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	queueService  *service.QueueService
	driverRepo    repository.DriverRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, queueService *service.QueueService, driverRepo repository.DriverRepository) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		queueService:  queueService,
		driverRepo:    driverRepo,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	RFIDUID        string `json:"rfid_uid,omitempty"`
	TodaNumber     string `json:"toda_number"`
	TricycleNumber string `json:"tricycle_number"`
	PaymentMode    string `json:"payment_mode,omitempty"`
}

// UpdateRFIDRequest is the HTTP request body for replacing a driver's tag.
type UpdateRFIDRequest struct {
	RFIDUID string `json:"rfid_uid"`
}

// UpdatePaymentModeRequest is the HTTP request body for changing payment mode.
type UpdatePaymentModeRequest struct {
	PaymentMode string `json:"payment_mode"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	RFIDUID        string  `json:"rfid_uid,omitempty"`
	TodaNumber     string  `json:"toda_number"`
	TricycleNumber string  `json:"tricycle_number"`
	PaymentMode    string  `json:"payment_mode"`
	Balance        float64 `json:"balance"`
	CanGoOnline    bool    `json:"can_go_online"`
}

// ContributionResponse is the HTTP response for a contribution.
type ContributionResponse struct {
	ID          string  `json:"id"`
	BookingID   string  `json:"booking_id"`
	Amount      float64 `json:"amount"`
	PaymentMode string  `json:"payment_mode"`
	Paid        bool    `json:"paid"`
	CreatedAt   string  `json:"created_at"`
}

// RFIDHistoryResponse is the HTTP response for an RFID change.
type RFIDHistoryResponse struct {
	OldRFID   string `json:"old_rfid,omitempty"`
	NewRFID   string `json:"new_rfid"`
	ChangedAt string `json:"changed_at"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	mode := d.PaymentMode
	if mode == "" {
		mode = domain.DefaultPaymentMode
	}
	return DriverResponse{
		ID:             d.ID,
		Name:           d.Name,
		Phone:          d.Phone,
		RFIDUID:        d.RFIDUID,
		TodaNumber:     d.TodaNumber,
		TricycleNumber: d.TricycleNumber,
		PaymentMode:    string(mode),
		Balance:        d.Balance,
		CanGoOnline:    d.CanGoOnline,
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	mode := domain.DefaultPaymentMode
	if req.PaymentMode != "" {
		mode = domain.PaymentMode(req.PaymentMode)
		if !mode.Valid() {
			respondError(c, service.ErrInvalidPaymentMode)
			return
		}
	}

	// Check if driver already exists
	existing, err := h.driverRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Driver already registered",
			"driver":  toDriverResponse(existing),
		})
		return
	}

	driver := &domain.Driver{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Phone:          req.Phone,
		RFIDUID:        strings.TrimSpace(req.RFIDUID),
		TodaNumber:     req.TodaNumber,
		TricycleNumber: req.TricycleNumber,
		PaymentMode:    mode,
		CanGoOnline:    true,
		CreatedAt:      time.Now(),
	}

	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			respondError(c, service.ErrRFIDInUse)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDriverResponse(driver))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, toDriverResponse(d))
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus handles GET /v1/drivers/:id/status
func (h *DriverHandler) GetStatus(c *gin.Context) {
	status, err := h.queueService.DriverStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, status)
}

// UpdateRFID handles PUT /v1/drivers/:id/rfid
func (h *DriverHandler) UpdateRFID(c *gin.Context) {
	var req UpdateRFIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.driverService.UpdateRFID(c.Request.Context(), c.Param("id"), req.RFIDUID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// GetRFIDHistory handles GET /v1/drivers/:id/rfid-history
func (h *DriverHandler) GetRFIDHistory(c *gin.Context) {
	history, err := h.driverService.RFIDHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RFIDHistoryResponse, 0, len(history))
	for _, e := range history {
		response = append(response, RFIDHistoryResponse{
			OldRFID:   e.OldRFID,
			NewRFID:   e.NewRFID,
			ChangedAt: e.ChangedAt.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// UpdatePaymentMode handles PUT /v1/drivers/:id/payment-mode
func (h *DriverHandler) UpdatePaymentMode(c *gin.Context) {
	var req UpdatePaymentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdatePaymentMode(c.Request.Context(), c.Param("id"), domain.PaymentMode(req.PaymentMode)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetContributions handles GET /v1/drivers/:id/contributions
func (h *DriverHandler) GetContributions(c *gin.Context) {
	contributions, err := h.driverService.Contributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ContributionResponse, 0, len(contributions))
	for _, ct := range contributions {
		response = append(response, ContributionResponse{
			ID:          ct.ID,
			BookingID:   ct.BookingID,
			Amount:      ct.Amount,
			PaymentMode: string(ct.PaymentMode),
			Paid:        ct.Paid,
			CreatedAt:   ct.CreatedAt.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}
