package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"toda/internal/domain"
	"toda/internal/service"
)

// QueueHandler handles HTTP requests for the driver queue.
type QueueHandler struct {
	queueService *service.QueueService
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// TapRequest is the HTTP request body sent by the RFID reader.
type TapRequest struct {
	RFIDUID string `json:"rfid_uid"`
}

// QueueEntryResponse is the HTTP response for one queue entry.
type QueueEntryResponse struct {
	Position   int    `json:"position"`
	DriverID   string `json:"driver_id"`
	DriverRFID string `json:"driver_rfid"`
	DriverName string `json:"driver_name"`
	TodaNumber string `json:"toda_number"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

func toQueueEntryResponse(position int, e domain.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		Position:   position,
		DriverID:   e.DriverID,
		DriverRFID: e.DriverRFID,
		DriverName: e.DriverName,
		TodaNumber: e.TodaNumber,
		Timestamp:  e.Timestamp,
		Status:     string(e.Status),
	}
}

// Tap handles POST /v1/queue/tap
func (h *QueueHandler) Tap(c *gin.Context) {
	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	entry, err := h.queueService.JoinQueue(c.Request.Context(), req.RFIDUID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toQueueEntryResponse(0, *entry))
}

// List handles GET /v1/queue
func (h *QueueHandler) List(c *gin.Context) {
	entries, err := h.queueService.ListQueue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]QueueEntryResponse, 0, len(entries))
	for i, e := range entries {
		response = append(response, toQueueEntryResponse(i+1, e))
	}

	respondJSON(c, http.StatusOK, response)
}

// Leave handles DELETE /v1/queue/:driverId
func (h *QueueHandler) Leave(c *gin.Context) {
	if err := h.queueService.LeaveQueue(c.Request.Context(), c.Param("driverId")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Pause handles POST /v1/queue/:driverId/pause
func (h *QueueHandler) Pause(c *gin.Context) {
	if err := h.queueService.PauseQueue(c.Request.Context(), c.Param("driverId")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Resume handles POST /v1/queue/:driverId/resume
func (h *QueueHandler) Resume(c *gin.Context) {
	if err := h.queueService.ResumeQueue(c.Request.Context(), c.Param("driverId")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
