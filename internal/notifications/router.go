package notifications

import (
	"municipal/internal/shared/config"
	"municipal/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupNotificationRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	notifications := router.Group("/notifications")
	notifications.Use(middleware.JWTAuth(cfg), middleware.RequireManager())
	{
		notifications.GET("/history", controller.GetHistory) // GET /api/v1/notifications/history
	}
}
