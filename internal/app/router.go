package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"corridor/internal/handler"
	"corridor/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler        *handler.OrderHandler
	WebhookHandler      *handler.WebhookHandler
	InterventionHandler *handler.InterventionHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.GET("/:id/events", deps.OrderHandler.ListEvents)
			orders.POST("/:id/confirm", deps.OrderHandler.ConfirmPayment)
			orders.POST("/:id/cancel", deps.OrderHandler.CancelOrder)
			orders.POST("/:id/refund", deps.OrderHandler.RefundOrder)
		}

		// Provider callback routes. Signed by the provider, not idempotency-keyed.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/:provider", deps.WebhookHandler.HandleCallback)
		}

		// Manual intervention routes.
		interventions := v1.Group("/interventions")
		{
			interventions.GET("", deps.InterventionHandler.ListOpen)
			interventions.GET("/:id", deps.InterventionHandler.GetCase)
			interventions.POST("/:id/resolve", deps.InterventionHandler.ResolveCase)
		}
	}

	return router
}
