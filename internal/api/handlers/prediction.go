package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magnet-api/internal/config"
	"github.com/Conceptual-Machines/magnet-api/internal/logger"
	"github.com/Conceptual-Machines/magnet-api/internal/metrics"
	"github.com/Conceptual-Machines/magnet-api/internal/models"
	"github.com/Conceptual-Machines/magnet-api/internal/services"
	"github.com/gin-gonic/gin"
)

type PredictionHandler struct {
	predictor *services.Predictor
	cwMetrics *metrics.Client
	cfg       *config.Config
}

func NewPredictionHandler(predictor *services.Predictor, cwMetrics *metrics.Client, cfg *config.Config) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		cwMetrics: cwMetrics,
		cfg:       cfg,
	}
}

// Predict runs one generation request. The call is synchronous: the gateway
// queues requests so exactly one prediction runs at a time.
func (h *PredictionHandler) Predict(c *gin.Context) {
	req := models.DefaultGenerationRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Checkpoint == "" {
		req.Checkpoint = h.cfg.DefaultCheckpoint
	}

	start := time.Now()
	paths, err := h.predictor.Predict(c.Request.Context(), &req)
	elapsed := time.Since(start)

	if h.cwMetrics != nil {
		h.cwMetrics.RecordPrediction(req.Checkpoint, req.Variations, elapsed, err == nil)
	}

	if err != nil {
		if errors.Is(err, models.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Prediction failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Prediction failed",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, models.PredictionResponse{
		Checkpoint: req.Checkpoint,
		Paths:      paths,
		DurationMs: elapsed.Milliseconds(),
	})
}
