package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"driveshare/internal/infra/config"
	"driveshare/internal/infra/obs"
)

type ReservationHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	ListMine(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Cancel(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
}

type PricingHTTP interface {
	Quote(c *gin.Context)
	SetOverrides(c *gin.Context)
}

type WebhookHTTP interface {
	PaymentEvent(c *gin.Context)
}

type Handlers struct {
	Reservation  ReservationHTTP
	Availability AvailabilityHTTP
	Pricing      PricingHTTP
	Webhook      WebhookHTTP
	Identity     gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.Identity != nil {
		router.Use(h.Identity)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Reservation != nil {
		api.POST("/reservations", h.Reservation.Create)
		api.GET("/reservations/:id", h.Reservation.Get)
		api.POST("/reservations/:id/approve", h.Reservation.Approve)
		api.POST("/reservations/:id/reject", h.Reservation.Reject)
		api.POST("/reservations/:id/cancel", h.Reservation.Cancel)
		api.GET("/me/reservations", h.Reservation.ListMine)
	}
	if h.Availability != nil {
		api.GET("/cars/:id/calendar", h.Availability.Calendar)
		hostGroup := api.Group("/host/cars")
		hostGroup.POST("/:id/blocks", h.Availability.Block)
		hostGroup.DELETE("/:id/blocks", h.Availability.Unblock)
	}
	if h.Pricing != nil {
		api.GET("/cars/:id/quote", h.Pricing.Quote)
		api.PUT("/host/cars/:id/price-overrides", h.Pricing.SetOverrides)
	}
	if h.Webhook != nil {
		api.POST("/webhooks/payments", h.Webhook.PaymentEvent)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
