package controllers

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/land-ingest/app/config"
	"github.com/land-ingest/app/requests"
	"github.com/land-ingest/app/responses"
	"github.com/land-ingest/app/services"
	"go.uber.org/zap"
)

// IngestController controller xử lý các request map/match/merge records
type IngestController struct {
	ingestService *services.IngestService
	logger        *zap.Logger
}

// NewIngestController tạo mới IngestController
func NewIngestController(ingestService *services.IngestService, logger *zap.Logger) *IngestController {
	return &IngestController{
		ingestService: ingestService,
		logger:        logger,
	}
}

// MapRows map các dòng thô sang canonical records
func (ic *IngestController) MapRows(c *gin.Context) {
	var req requests.MapRowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	startTime := time.Now()
	records, err := ic.ingestService.MapRows(req.Rows, req.Source)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.MapRowsResponse{
		Records:          records,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}

// RecordKey tính record key và các blocking keys
func (ic *IngestController) RecordKey(c *gin.Context) {
	var req requests.RecordKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key, keys := ic.ingestService.RecordKey(req.Record)
	c.JSON(http.StatusOK, responses.RecordKeyResponse{
		RecordKey: key,
		Keys:      keys,
		Valid:     keys.Any(),
	})
}

// Match so khớp hai records
func (ic *IngestController) Match(c *gin.Context) {
	var req requests.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, ic.ingestService.Match(req.A, req.B))
}

// Merge merge đồng bộ một batch
func (ic *IngestController) Merge(c *gin.Context) {
	var req requests.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	startTime := time.Now()
	result, cacheHit, err := ic.ingestService.Merge(c.Request.Context(), &req)
	if err != nil {
		serviceError(c, err)
		return
	}

	elapsed := time.Since(startTime)
	if elapsed > config.RequestTimeout() {
		ic.logger.Warn("Merge vượt quá thời gian mục tiêu",
			zap.Duration("elapsed", elapsed),
			zap.Int("processed", result.Summary.Processed))
	}

	c.JSON(http.StatusOK, responses.MergeResponse{
		Result:           result,
		PolicyVersion:    config.C.Cache.PolicyVersion,
		ProcessingTimeMs: elapsed.Milliseconds(),
		CacheHit:         cacheHit,
	})
}

// CreateMergeJob tạo job merge chạy nền
func (ic *IngestController) CreateMergeJob(c *gin.Context) {
	var req requests.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	job, err := ic.ingestService.StartMergeJob(&req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, responses.MergeJobResponse{
		JobID:            job.JobID,
		EstimatedSeconds: job.EstimatedRemaining,
		TotalRecords:     job.Total,
		Message:          "Job đã được tạo và đang xử lý",
	})
}

// GetJobStatus lấy trạng thái job
func (ic *IngestController) GetJobStatus(c *gin.Context) {
	jobID := c.Param("jobID")
	status, err := ic.ingestService.GetJobStatus(jobID)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.JobStatusResponse{
		JobID:              jobID,
		Status:             status.Status,
		Progress:           status.Progress,
		Processed:          status.Processed,
		Total:              status.Total,
		EstimatedRemaining: status.EstimatedRemaining,
		Message:            status.Message,
		Summary:            status.Summary,
	})
}

// GetJobResults lấy kết quả job với hỗ trợ NDJSON + gzip streaming
func (ic *IngestController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")

	if c.Query("format") == "ndjson" {
		ic.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	result, err := ic.ingestService.GetJobResults(c.Request.Context(), jobID)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Lấy kết quả thành công",
		Data:      result,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthCheck kiểm tra sức khỏe service
func (ic *IngestController) HealthCheck(c *gin.Context) {
	uptime := time.Since(ic.ingestService.GetStartTime())

	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		Version:   config.C.Cache.PolicyVersion,
		Services: map[string]string{
			"merge_engine": "healthy",
		},
	})
}

// streamNDJSONResults stream final records theo format NDJSON, có thể gzip
func (ic *IngestController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	records, err := ic.ingestService.GetJobRecordStream(c.Request.Context(), jobID)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{
			ResponseWriter: c.Writer,
			gzWriter:       gzWriter,
		}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for r := range records {
		if err := encoder.Encode(r); err != nil {
			ic.logger.Error("Lỗi encode NDJSON", zap.String("job_id", jobID), zap.Error(err))
			break
		}
		writer.Flush()
	}
}

// gzipResponseWriter wrapper cho gzip writer
type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, responses.ErrorResponse{
		Error:     "INVALID_REQUEST",
		Message:   "Request không hợp lệ: " + err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// serviceError maps service errors to status codes and error codes.
func serviceError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		status, code = http.StatusNotFound, "JOB_NOT_FOUND"
	case errors.Is(err, services.ErrTooManyRecords):
		status, code = http.StatusRequestEntityTooLarge, "TOO_MANY_RECORDS"
	case errors.Is(err, services.ErrEmptyBatch):
		status, code = http.StatusBadRequest, "EMPTY_BATCH"
	case errors.Is(err, services.ErrUnknownExportPart):
		status, code = http.StatusBadRequest, "UNKNOWN_EXPORT_PART"
	case errors.Is(err, services.ErrUnsupportedExportFormat):
		status, code = http.StatusBadRequest, "UNSUPPORTED_FORMAT"
	}
	c.JSON(status, responses.ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
