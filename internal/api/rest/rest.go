package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-minter/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check and frame embed (no version prefix)
	router.GET("/health", handler.HealthCheck)
	router.GET("/frame", handler.Frame)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Session bootstrap reads the host token, the other session routes only need the id
		v1.POST("/sessions", middleware.HostCredentials(), handler.CreateSession)

		sessions := v1.Group("/sessions/:id", middleware.SessionLogging())
		sessions.GET("", handler.GetSession)
		sessions.POST("/generate", handler.Generate)
		sessions.POST("/mint", handler.Mint)

		// Public reads
		v1.GET("/records/:identity", handler.GetRecord)
		v1.GET("/stats", handler.GetStats)

		// Metadata pinning
		v1.POST("/metadata", handler.UploadMetadata)
	}
}
