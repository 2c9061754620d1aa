package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/modelstore"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClassificationHandler serves the prediction endpoint and the stored
// classification history.
type ClassificationHandler struct {
	predictionService  service.PredictionService
	classificationRepo repository.ClassificationRepository
	store              *modelstore.Store
	logger             *zap.Logger
}

func NewClassificationHandler(
	predictionService service.PredictionService,
	classificationRepo repository.ClassificationRepository,
	store *modelstore.Store,
	logger *zap.Logger,
) *ClassificationHandler {
	return &ClassificationHandler{
		predictionService:  predictionService,
		classificationRepo: classificationRepo,
		store:              store,
		logger:             logger,
	}
}

type ClassifyRequest struct {
	EmailText string `json:"email_text"`
}

// Classify handles POST /api/classify. Anonymous callers (the Postfix hook)
// are allowed; authenticated callers get the record linked to their account.
func (h *ClassificationHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email text ('email_text') is required."})
		return
	}

	var userID *int64
	if id, ok := middleware.UserID(c); ok {
		userID = &id
	}

	result, err := h.predictionService.Predict(c.Request.Context(), req.EmailText, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email text ('email_text') is required."})
		case errors.Is(err, service.ErrModelNotReady):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ML models are not ready. Please try again or contact support."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal server error occurred during prediction. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction":        result.Label,
		"confidence":        result.Confidence,
		"email_text":        result.EmailText,
		"classification_id": result.ClassificationID,
	})
}

// List handles GET /api/classifications. Returns one page of history,
// newest first, including records from anonymous callers.
func (h *ClassificationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	classifications, total, err := h.classificationRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list classifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch classifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"classifications": classifications,
		"total":           total,
		"page":            page,
		"page_size":       pageSize,
	})
}

// Stats handles GET /api/stats.
func (h *ClassificationHandler) Stats(c *gin.Context) {
	stats, err := h.classificationRepo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get classification stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ModelInfo handles GET /api/model/info.
func (h *ClassificationHandler) ModelInfo(c *gin.Context) {
	artifact, err := h.store.Artifact()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":       "not_ready",
			"model_loaded": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model_loaded": true,
		"source_path":  artifact.SourcePath,
		"loaded_at":    artifact.LoadedAt,
		"labels":       artifact.Classifier.Labels(),
		"dimension":    artifact.Embedder.Dim(),
	})
}
