package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/land-ingest/app/controllers"
	"go.uber.org/zap"
)

// SetupAllRoutes thiết lập tất cả routes
func SetupAllRoutes(router *gin.Engine, logger *zap.Logger, ingestController *controllers.IngestController, adminController *controllers.AdminController) {
	setupMiddleware(router, logger)

	SetupWebRoutes(router)
	SetupHealthRoutes(router, ingestController)
	SetupAPIRoutes(router, ingestController, adminController)

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

// setupMiddleware thiết lập middleware cho router
func setupMiddleware(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
}

// requestLogger log mỗi request qua zap thay cho gin.Logger
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
