package api

import (
	"github.com/Conceptual-Machines/magnet-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magnet-api/internal/api/middleware"
	"github.com/Conceptual-Machines/magnet-api/internal/config"
	"github.com/Conceptual-Machines/magnet-api/internal/metrics"
	"github.com/Conceptual-Machines/magnet-api/internal/services"
	"github.com/gin-gonic/gin"
)

func SetupRouter(predictor *services.Predictor, cwMetrics *metrics.Client, cfg *config.Config, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking())

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(cfg)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// API routes v1. Auth is owned by the gateway: in gateway mode we trust
	// its X-User-* headers, otherwise requests pass through.
	v1 := router.Group("/api/v1")
	if cfg.IsGatewayMode() {
		v1.Use(apimiddleware.GatewayAuth())
	} else {
		v1.Use(apimiddleware.NoAuth())
	}
	{
		predictionHandler := handlers.NewPredictionHandler(predictor, cwMetrics, cfg)
		v1.POST("/predictions", predictionHandler.Predict)

		v1.GET("/checkpoints", handlers.ListCheckpoints)
	}

	return router
}
