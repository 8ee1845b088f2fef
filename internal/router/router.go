package router

import (
	"github.com/gin-gonic/gin"

	"policonv/internal/handler"
	"policonv/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	jobH *handler.JobHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Job routes
	jobs := v1.Group("/jobs")
	jobs.POST("", jobH.Create)
	jobs.GET("", jobH.List)
	jobs.GET("/:id", jobH.GetByID)
	jobs.POST("/:id/map", jobH.TriggerMapping)
	jobs.GET("/:id/bundle", jobH.GetBundle)
	jobs.GET("/:id/export.xlsx", jobH.ExportXLSX)

	return r
}
