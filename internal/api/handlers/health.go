package handlers

import (
	"net/http"
	"os"

	"github.com/Conceptual-Machines/magnet-api/internal/config"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	weightsStatus := "missing"
	if _, err := os.Stat(h.cfg.WeightsCacheDir); err == nil {
		weightsStatus = "ready"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"weights": gin.H{
			"status": weightsStatus,
			"dir":    h.cfg.WeightsCacheDir,
		},
	})
}
