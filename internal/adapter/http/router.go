package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
)

// RouterConfig holds the API settings taken from the service configuration.
type RouterConfig struct {
	// AllowedOrigins restricts CORS. Empty allows all origins.
	AllowedOrigins []string
	MaxUploadBytes int64
	MapStyle       string
	// MapboxToken is handed to the browser for basemap tiles. Empty omits it.
	MapboxToken string
}

// SetupRouter creates and configures the Gin router for the dashboard API.
func SetupRouter(svc Dashboard, cfg RouterConfig, metrics *observability.Metrics, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics(metrics, logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(svc, cfg, metrics, logger)

	v1 := router.Group("/v1")

	datasets := v1.Group("/datasets")
	datasets.POST("", handler.Upload)
	datasets.GET("/:id", handler.GetDataset)
	datasets.DELETE("/:id", handler.DeleteDataset)
	datasets.GET("/:id/through-periods", handler.GetThroughPeriods)
	datasets.GET("/:id/aggregate", handler.GetAggregate)
	datasets.GET("/:id/hydrograph", handler.GetHydrograph)
	datasets.POST("/:id/selection", handler.PostSelection)

	reference := v1.Group("/reference")
	reference.GET("/basins", handler.GetBasins)
	reference.GET("/countries", handler.GetCountries)

	v1.GET("/map/config", handler.GetMapConfig)

	return router
}

// requestMetrics records request counts and latency per matched route.
func requestMetrics(metrics *observability.Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		logger.Debug("request served",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	}
}
