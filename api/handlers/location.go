package handlers

import (
	"net/http"
	"time"

	"friendtime/models"
	"friendtime/services"

	"github.com/gin-gonic/gin"
)

type LocationReportRequest struct {
	Latitude   *float64   `json:"latitude" binding:"required"`
	Longitude  *float64   `json:"longitude" binding:"required"`
	AccuracyM  float64    `json:"accuracy"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type LocationReportResponse struct {
	Status services.IngestStatus `json:"status"`
	Queued bool                  `json:"queued"`
	Opened []models.TimeSession  `json:"opened,omitempty"`
	Closed []models.TimeSession  `json:"closed,omitempty"`
}

// ReportLocation - прием координат устройства
func (h *Handlers) ReportLocation(c *gin.Context) {
	var req LocationReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	fix := services.Fix{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		AccuracyM: req.AccuracyM,
	}
	if req.RecordedAt != nil {
		fix.RecordedAt = *req.RecordedAt
	}

	result, err := h.Pipeline.Report(c.Request.Context(), currentUser(c), fix)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := LocationReportResponse{Status: result.Ingest.Status, Queued: result.Queued}
	if result.Transitions != nil {
		resp.Opened = result.Transitions.Opened
		resp.Closed = result.Transitions.Closed
	}
	c.JSON(http.StatusOK, resp)
}
