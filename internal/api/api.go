package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/restock/internal/api/handlers"
	"github.com/andresuchdata/restock/internal/api/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Services struct {
	Replenishment handlers.ReplenishmentService
	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

type RouterOptions struct {
	AllowedOrigins []string
	// ServiceName enables otelgin tracing when non-empty.
	ServiceName string
}

func NewRouter(services *Services, opts RouterOptions) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/health", healthHandler(services))

	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/health", healthHandler(services))

	if services != nil && services.Replenishment != nil {
		h := handlers.NewReplenishmentHandler(services.Replenishment)
		owned := apiGroup.Group("", handlers.RequireOwner())
		{
			owned.GET("/forecasts/:product_id", h.GetForecast)

			owned.GET("/recommendations", h.GetRecommendations)
			owned.POST("/recommendations/export", h.ExportRecommendations)
			owned.GET("/recommendations/exports", h.ListExports)

			owned.GET("/reorder-rules/:product_id", h.GetReorderRule)
			owned.PUT("/reorder-rules/:product_id", h.SetReorderRule)
		}
	}

	return router
}

func healthHandler(services *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if services != nil && services.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := services.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.OwnerIDHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	return corsConfig
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
