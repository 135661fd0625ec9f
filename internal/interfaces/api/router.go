package api

import (
	"net/http"
	"time"

	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the HTTP API
func NewRouter(handler *Handler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.WithComponent("http")), cors())

	r.GET("/health", handler.handleHealth)

	api := r.Group("/api/v1")
	{
		api.POST("/upload-csv", handler.handleUploadCSV)
		api.POST("/analyses", handler.handleStartAnalysis)

		analysis := api.Group("/analysis/:id")
		analysis.GET("/status", handler.handleStatus)
		analysis.GET("/report", handler.handleReport)
		analysis.GET("/graph", handler.handleGraph)
		analysis.GET("/clusters", handler.handleClusters)
		analysis.GET("/download/:format", handler.handleDownload)
	}

	return r
}

// requestLogger logs one line per request
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
