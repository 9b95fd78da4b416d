// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/openpulse-go/internal/application/services"
	"github.com/openpulse/openpulse-go/internal/domain/tracking"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
)

// TrackHandlers contains the tracking beacon HTTP handlers
type TrackHandlers struct {
	trackService *services.TrackService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewTrackHandlers creates track handlers with injected dependencies
func NewTrackHandlers(trackService *services.TrackService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *TrackHandlers {
	return &TrackHandlers{
		trackService: trackService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// PostTrack handles POST /track - accepts a tracking beacon
func (h *TrackHandlers) PostTrack(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("post_track_request", "")
	defer marker.Complete()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Bad Request",
			"details": "unable to read request body",
		})
		return
	}

	payload, fieldErrors := tracking.ParsePayload(body)
	if len(fieldErrors) > 0 {
		h.logger.Track().Debug("Beacon rejected by validation",
			"errors", len(fieldErrors), "path", c.Request.URL.Path)
		c.JSON(http.StatusBadRequest, gin.H{
			"success":          false,
			"message":          "Bad Request",
			"errorCode":        "VALIDATION_ERROR",
			"validationErrors": fieldErrors,
		})
		return
	}

	result, err := h.trackService.ProcessEvent(payload, GetIPAddress(c), c.GetHeader("user-agent"))
	if err != nil {
		h.handleProcessError(c, payload, err)
		marker.SetSuccess(false)
		return
	}

	marker.SetSuccess(true)
	h.logger.Track().Debug("Beacon accepted",
		"type", result.Type, "siteId", result.SiteID, "sessionId", result.SessionID,
		"duration", time.Since(start))

	data := gin.H{
		"type":    result.Type,
		"site_id": result.SiteID,
	}
	if result.SessionID != "" {
		data["session_id"] = result.SessionID
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OK",
		"data":    data,
	})
}

func (h *TrackHandlers) handleProcessError(c *gin.Context, payload *tracking.Payload, err error) {
	switch {
	case errors.Is(err, services.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Not Found",
			"details": "Site not found",
		})
	case errors.Is(err, services.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Service Unavailable",
			"details": "event queue at capacity",
		})
	default:
		h.logger.Track().Error("Beacon processing failed",
			"error", err.Error(), "siteId", payload.SiteID, "type", payload.Type)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal Server Error",
		})
	}
}
