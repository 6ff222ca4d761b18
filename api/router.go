package api

import (
	"github.com/gin-gonic/gin"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Handler     *Handler
	Health      *HealthHandler
	AdminAPIKey string
	Limiter     RateLimiter
	RateSalt    string
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	router.GET("/healthz", cfg.Health.Check)

	v1 := router.Group("/api/v1")
	v1.POST("/surveys/:id/responses", RateLimit(cfg.Limiter, cfg.RateSalt), cfg.Handler.SubmitResponse)

	operator := v1.Group("", AdminAuth(cfg.AdminAPIKey))
	operator.POST("/surveys/:id/draw", cfg.Handler.RunDraw)
	operator.GET("/surveys/:id/draw", cfg.Handler.GetDrawRecord)
	operator.POST("/draws/:drawId/notification/resend", cfg.Handler.ResendNotification)

	return router
}
