// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openpulse/openpulse-go/internal/application/container"
	"github.com/openpulse/openpulse-go/internal/presentation/http/handlers"
	"github.com/openpulse/openpulse-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	trackHandlers := handlers.NewTrackHandlers(container.TrackService, container.Logger, container.PerfTracker)
	scriptHandlers := handlers.NewScriptHandlers(container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.Columnar, container.PerfTracker)

	r.POST("/track", trackHandlers.PostTrack)
	r.GET("/analytics.js", scriptHandlers.GetScript)
	r.GET("/health", healthHandlers.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
