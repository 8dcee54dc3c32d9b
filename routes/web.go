// Package routes cung cấp tất cả routing functions cho Land Ingest Service
//
// Cấu trúc:
// - api.go: API routes (/v1/*) và health routes
// - web.go: Web routes (/, /docs)
// - routes.go: SetupAllRoutes và middleware
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupWebRoutes thiết lập web routes
func SetupWebRoutes(router *gin.Engine) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Land Ingest Service",
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api": "Land Ingest API v1",
				"endpoints": map[string]string{
					"map":         "POST /v1/records/map",
					"key":         "POST /v1/records/key",
					"match":       "POST /v1/records/match",
					"merge":       "POST /v1/records/merge",
					"create_job":  "POST /v1/ingest/jobs",
					"job_status":  "GET /v1/ingest/jobs/:jobID/status",
					"job_results": "GET /v1/ingest/jobs/:jobID/results?format=ndjson&gzip=1",
					"stats":       "GET /v1/admin/stats",
					"invalidate":  "POST /v1/admin/cache/invalidate",
					"export":      "GET /v1/admin/export/:jobID/:part?format=csv",
					"health":      "GET /v1/health",
				},
			})
		})
	}
}
