package dashboard

import (
	"municipal/internal/shared/config"
	"municipal/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupDashboardRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	dashboard := router.Group("/dashboard")
	dashboard.Use(middleware.OptionalAuth(cfg))
	{
		dashboard.GET("/overview", controller.GetOverview) // GET /api/v1/dashboard/overview
	}
}
