// Package httpapi exposes the offline session to the browser UI over HTTP
// and a websocket state stream.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/session"
)

// NewRouter builds the gin engine serving the offline API
func NewRouter(ctrl *session.Controller, reporter Reporter, logger *slog.Logger) *gin.Engine {
	logger = logging.OrDiscard(logger)
	h := NewOfflineHandler(ctrl, reporter, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/offline")
	{
		api.GET("/state", h.State)
		api.POST("/enable", h.Enable)
		api.POST("/disable", h.Disable)
		api.POST("/sync", h.Sync)
		api.POST("/retry", h.Retry)
		api.POST("/payments", h.RecordPayment)
		api.POST("/queue", h.QueueMutation)
		api.GET("/cached/:kind", h.Cached)
		api.POST("/connectivity", h.Connectivity)
		api.DELETE("/error", h.ClearError)
		api.GET("/events", h.Events)
	}
	return r
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
