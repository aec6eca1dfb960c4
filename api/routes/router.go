// Package routes wires repositories, services and controllers into the gin
// engine.
package routes

import (
	"net/http"
	"time"

	"municipal/internal/bookings"
	"municipal/internal/dashboard"
	"municipal/internal/events"
	"municipal/internal/notifications"
	"municipal/internal/shared/config"
	"municipal/internal/shared/database"
	"municipal/internal/shared/validation"
	"municipal/pkg/cache"

	"github.com/gin-gonic/gin"
)

const serviceName = "municipal-backoffice"

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	publisher notifications.Publisher
	cache     cache.Service
}

// NewRouter creates a router. A nil publisher records notifications straight
// into the history table.
func NewRouter(cfg *config.Config, db *database.DB, publisher notifications.Publisher) *Router {
	if publisher == nil {
		publisher = notifications.NewRecordingPublisher(notifications.NewRepository(db.SQL))
	}

	r := &Router{config: cfg, db: db, publisher: publisher}
	if db.Redis != nil {
		r.cache = cache.NewService(db.Redis)
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	validation.Register()

	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		eventService := r.setupEventRoutes(api)
		r.setupBookingRoutes(api, eventService)
		r.setupDashboardRoutes(api)
		r.setupNotificationRoutes(api)
	}
}

func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   serviceName,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   serviceName,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"redis_cache": r.cache != nil,
			"timestamp":   time.Now(),
		})
	})
}

func (r *Router) setupEventRoutes(rg *gin.RouterGroup) events.Service {
	eventRepo := events.NewRepository(r.db.SQL)
	eventService := events.NewService(eventRepo)
	if r.cache != nil {
		eventService.SetCacheService(r.cache, r.config.Redis.EventDetailTTL)
	}

	events.SetupEventRoutes(rg, events.NewController(eventService), r.config)
	return eventService
}

func (r *Router) setupBookingRoutes(rg *gin.RouterGroup, eventService events.Service) {
	bookingService := bookings.NewService(
		bookings.NewRepository(r.db.SQL),
		events.NewRepository(r.db.SQL),
		r.config.Booking,
	)
	bookingService.SetPublisher(r.publisher)
	if r.cache != nil {
		bookingService.SetCacheService(r.cache)
	}

	// event writes cascade into bookings inside their own transaction
	eventService.SetBookingKeeper(bookingService)

	bookings.SetupBookingRoutes(rg, bookings.NewController(bookingService), r.config)
}

func (r *Router) setupDashboardRoutes(rg *gin.RouterGroup) {
	dashboardService := dashboard.NewService(dashboard.NewRepository(r.db.SQL))
	if r.cache != nil {
		dashboardService.SetCacheService(r.cache, r.config.Redis.DashboardTTL)
	}

	dashboard.SetupDashboardRoutes(rg, dashboard.NewController(dashboardService), r.config)
}

func (r *Router) setupNotificationRoutes(rg *gin.RouterGroup) {
	notificationService := notifications.NewService(notifications.NewRepository(r.db.SQL))
	notifications.SetupNotificationRoutes(rg, notifications.NewController(notificationService), r.config)
}
