package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"backend/internal/middleware"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type FeedbackHandler struct {
	feedbackService service.FeedbackService
	log             *logrus.Logger
}

func NewFeedbackHandler(feedbackService service.FeedbackService, log *logrus.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, log: log}
}

type feedbackRequest struct {
	IsCorrect   *bool  `json:"is_correct"`
	UserComment string `json:"user_comment"`
}

// Submit handles POST /api/classifications/:id/feedback. The payload is
// validated before any lookup; a missing or wrongly typed is_correct is a
// client error.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), "application/json") {
		h.log.Warnf("Feedback: expected application/json, got %q", c.ContentType())
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Expected application/json"})
		return
	}

	classificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid classification ID"})
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		h.log.Warnf("Feedback: invalid JSON for classification %d: %v", classificationID, err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON."})
		return
	}
	if req.IsCorrect == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "'is_correct' is required."})
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Authentication required"})
		return
	}

	_, err = h.feedbackService.Submit(c.Request.Context(), classificationID, userID, *req.IsCorrect, req.UserComment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClassificationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Classification not found."})
		case errors.Is(err, service.ErrFeedbackConflict):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Feedback already submitted."})
		default:
			h.log.Errorf("Feedback: failed for classification %d: %v", classificationID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to submit feedback."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Feedback submitted."})
}
