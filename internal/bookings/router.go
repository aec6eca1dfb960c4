package bookings

import (
	"municipal/internal/shared/config"
	"municipal/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(router *gin.RouterGroup, controller Controller, cfg *config.Config) {
	bookings := router.Group("/bookings")
	bookings.Use(middleware.JWTAuth(cfg))
	{
		bookings.POST("", controller.CreateBooking)            // POST /api/v1/bookings
		bookings.GET("", controller.ListBookings)              // GET /api/v1/bookings
		bookings.GET("/:id", controller.GetBooking)            // GET /api/v1/bookings/:id
		bookings.GET("/:id/receipt", controller.GetReceipt)    // GET /api/v1/bookings/:id/receipt
		bookings.POST("/:id/cancel", controller.CancelBooking) // POST /api/v1/bookings/:id/cancel
	}

	manage := router.Group("/bookings")
	manage.Use(middleware.JWTAuth(cfg), middleware.RequireManager())
	{
		manage.GET("/export", controller.ExportBookings)
		manage.PUT("/:id", controller.UpdateBooking)
		manage.POST("/:id/confirm", controller.ConfirmBooking)
		manage.DELETE("/:id", controller.DeleteBooking)
	}

	availability := router.Group("/events")
	availability.Use(middleware.JWTAuth(cfg))
	{
		availability.GET("/:id/availability", controller.GetAvailability) // GET /api/v1/events/:id/availability
	}
}
