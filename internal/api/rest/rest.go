package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/amplifrens/amplifrens-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, auth *middleware.Authenticator) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Static segment "top" takes precedence over the :id wildcard
		v1.GET("/contributions/top", handler.GetTopContribution)
		v1.GET("/contributions/:id", handler.GetContribution)
		v1.GET("/contributions/:id/votes", handler.ListVotes)
		v1.GET("/contributions", handler.ListContributions)

		v1.GET("/profiles/:address", handler.GetProfile)
		v1.GET("/profiles", handler.FindProfile)

		v1.GET("/leaderboard", handler.GetLeaderboard)
		v1.GET("/statuses/:address", handler.GetStatus)
		v1.GET("/events", handler.ListEvents)

		admin := v1.Group("/admin", middleware.Auth(auth))
		admin.POST("/replays", handler.TriggerReplay)
		admin.GET("/replays/:workflow_id", handler.GetReplay)
	}
}
