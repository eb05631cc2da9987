package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/magnet-api/internal/models"
	"github.com/gin-gonic/gin"
)

// ListCheckpoints advertises the checkpoints a request may name
func ListCheckpoints(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"checkpoints": models.Checkpoints,
	})
}
