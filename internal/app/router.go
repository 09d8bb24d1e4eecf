package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"toda/internal/handler"
	"toda/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PassengerHandler *handler.PassengerHandler
	DriverHandler    *handler.DriverHandler
	QueueHandler     *handler.QueueHandler
	BookingHandler   *handler.BookingHandler
	RedisClient      *redis.Client // nil disables idempotency
	NewRelicApp      *newrelic.Application
	RateLimiter      *middleware.RateLimiter // nil disables rate limiting
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		// Passenger routes.
		passengers := v1.Group("/passengers")
		{
			passengers.POST("/register", deps.PassengerHandler.Register)
			passengers.GET("", deps.PassengerHandler.GetAll)
			passengers.GET("/:id/fee", deps.PassengerHandler.GetFee)
			passengers.PUT("/:id/discount", deps.PassengerHandler.UpdateDiscount)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.GET("/:id/status", deps.DriverHandler.GetStatus)
			drivers.GET("/:id/status/ws", deps.DriverHandler.WatchStatus)
			drivers.PUT("/:id/rfid", deps.DriverHandler.UpdateRFID)
			drivers.GET("/:id/rfid-history", deps.DriverHandler.GetRFIDHistory)
			drivers.PUT("/:id/payment-mode", deps.DriverHandler.UpdatePaymentMode)
			drivers.GET("/:id/contributions", deps.DriverHandler.GetContributions)
		}

		// Queue routes.
		queue := v1.Group("/queue")
		{
			queue.POST("/tap", deps.QueueHandler.Tap)
			queue.GET("", deps.QueueHandler.List)
			queue.DELETE("/:driverId", deps.QueueHandler.Leave)
			queue.POST("/:driverId/pause", deps.QueueHandler.Pause)
			queue.POST("/:driverId/resume", deps.QueueHandler.Resume)
		}

		// Booking routes.
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/match", deps.BookingHandler.Match)
			bookings.POST("/:id/arrive", deps.BookingHandler.Arrive)
			bookings.POST("/:id/start", deps.BookingHandler.Start)
			bookings.POST("/:id/complete", deps.BookingHandler.Complete)
			bookings.POST("/:id/no-show", deps.BookingHandler.NoShow)
			bookings.POST("/:id/cancel", deps.BookingHandler.Cancel)
		}
	}

	return router
}
