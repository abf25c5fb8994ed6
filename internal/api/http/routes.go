package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routing and recovery routes
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	// Order routing and lifecycle routes
	orderAPI := router.Group("/api/v1/orders")
	{
		orderAPI.POST("/route", handlers.RouteOrder())
		orderAPI.GET("/:orderId", handlers.GetOrder())
		orderAPI.POST("/:orderId/start-processing", handlers.StartProcessing())
		orderAPI.POST("/:orderId/complete", handlers.CompleteOrder())
		orderAPI.POST("/:orderId/cancel", handlers.CancelOrder())
		orderAPI.GET("/:orderId/decisions", handlers.GetRoutingDecisions())
		orderAPI.GET("/:orderId/healing-actions", handlers.GetHealingHistory())
	}

	// Supplier response routes
	assignmentAPI := router.Group("/api/v1/assignments")
	{
		assignmentAPI.POST("/:assignmentId/accept", handlers.AcceptAssignment())
		assignmentAPI.POST("/:assignmentId/reject", handlers.RejectAssignment())
	}

	// Ranking configuration routes
	routingAPI := router.Group("/api/v1/routing")
	{
		routingAPI.GET("/weights", handlers.GetRankingWeights())
		routingAPI.PUT("/weights", handlers.UpdateRankingWeights())
	}

	// Admin notification routes
	notificationAPI := router.Group("/api/v1/notifications")
	{
		notificationAPI.GET("", handlers.ListNotifications())
		notificationAPI.POST("/:notificationId/acknowledge", handlers.AcknowledgeNotification())
	}

	// Recovery operations routes
	recoveryAPI := router.Group("/api/v1/recovery")
	{
		recoveryAPI.POST("/trigger", handlers.TriggerRecoveryCycle())
		recoveryAPI.GET("/status", handlers.RecoveryStatus())
		recoveryAPI.POST("/scheduler/start", handlers.StartScheduler())
		recoveryAPI.POST("/scheduler/stop", handlers.StopScheduler())
	}
}
