package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/land-ingest/app/controllers"
)

// SetupAPIRoutes thiết lập tất cả API routes
func SetupAPIRoutes(router *gin.Engine, ingestController *controllers.IngestController, adminController *controllers.AdminController) {
	v1 := router.Group("/v1")
	{
		records := v1.Group("/records")
		{
			records.POST("/map", ingestController.MapRows)
			records.POST("/key", ingestController.RecordKey)
			records.POST("/match", ingestController.Match)
			records.POST("/merge", ingestController.Merge)
		}

		jobs := v1.Group("/ingest/jobs")
		{
			jobs.POST("", ingestController.CreateMergeJob)
			jobs.GET("/:jobID/status", ingestController.GetJobStatus)
			jobs.GET("/:jobID/results", ingestController.GetJobResults)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/cache/invalidate", adminController.InvalidateCache)
			admin.GET("/stats", adminController.GetStats)
			admin.GET("/export/:jobID/:part", adminController.ExportJob)
		}

		v1.GET("/health", ingestController.HealthCheck)
	}
}

// SetupHealthRoutes thiết lập health check routes
func SetupHealthRoutes(router *gin.Engine, ingestController *controllers.IngestController) {
	router.GET("/health", ingestController.HealthCheck)
	router.GET("/ready", ingestController.HealthCheck)
	router.GET("/live", ingestController.HealthCheck)
}
