package events

import (
	"municipal/internal/shared/config"
	"municipal/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	// Any authenticated user may browse events and zones
	events := router.Group("/events")
	events.Use(middleware.JWTAuth(cfg))
	{
		events.GET("", controller.GetAllEvents)        // GET /api/v1/events
		events.GET("/:id", controller.GetEvent)        // GET /api/v1/events/:id
		events.GET("/:id/zones", controller.ListZones) // GET /api/v1/events/:id/zones
	}

	// Administrators and editors manage events and zones
	manage := router.Group("/events")
	manage.Use(middleware.JWTAuth(cfg), middleware.RequireManager())
	{
		manage.POST("", controller.CreateEvent)
		manage.PUT("/:id", controller.UpdateEvent)
		manage.DELETE("/:id", controller.DeleteEvent)

		manage.POST("/:id/zones", controller.CreateZone)
		manage.PUT("/:id/zones/:zoneId", controller.UpdateZone)
		manage.DELETE("/:id/zones/:zoneId", controller.DeleteZone)
	}
}
