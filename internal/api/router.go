package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter registers the API routes on a fresh engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	{
		v1.GET("/schemas", h.ListSchemas)
		v1.GET("/schemas/:type", h.GetSchema)
		v1.GET("/records", h.ListRecords)
		v1.POST("/records/:type/extract", h.Extract)
		v1.POST("/records/:type/audio", h.ExtractAudio)
		v1.GET("/envelopes/:id", h.GetRecord)
		v1.GET("/envelopes/:id/html", h.GetRecordHTML)
		v1.GET("/audit", h.ListAudit)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/v1") {
			c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Message: "API route not found"}})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return r
}

// requestLogger logs one line per request; bodies are never logged since
// they carry patient transcripts
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
