package responses

import "github.com/land-ingest/app/models"

// MapRowsResponse response map rows
type MapRowsResponse struct {
	Records          []*models.CanonicalRecord `json:"records"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
}

// RecordKeyResponse response record key
type RecordKeyResponse struct {
	RecordKey string           `json:"record_key"`
	Keys      models.MatchKeys `json:"keys"`
	Valid     bool             `json:"valid"` // false khi không có blocking key nào
}

// MergeResponse response merge batch
type MergeResponse struct {
	Result           *models.BatchResult `json:"result"`
	PolicyVersion    string              `json:"policy_version"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	CacheHit         bool                `json:"cache_hit"`
}

// MergeJobResponse response tạo merge job
type MergeJobResponse struct {
	JobID            string `json:"job_id"`            // ID của job
	EstimatedSeconds int    `json:"estimated_seconds"` // Thời gian ước tính (giây)
	TotalRecords     int    `json:"total_records"`     // Tổng số records incoming
	Message          string `json:"message"`
}

// JobStatusResponse response trạng thái job
type JobStatusResponse struct {
	JobID              string               `json:"job_id"`
	Status             string               `json:"status"`
	Progress           float64              `json:"progress"` // 0.0 - 1.0
	Processed          int                  `json:"processed"`
	Total              int                  `json:"total"`
	EstimatedRemaining int                  `json:"estimated_remaining"` // giây
	Message            string               `json:"message"`
	Summary            *models.BatchSummary `json:"summary,omitempty"`
}

// ErrorResponse response lỗi
type ErrorResponse struct {
	Error     string      `json:"error"`                // Mã lỗi
	Message   string      `json:"message"`              // Thông báo lỗi
	Details   interface{} `json:"details,omitempty"`    // Chi tiết lỗi
	Timestamp string      `json:"timestamp"`            // Thời gian xảy ra lỗi
	RequestID string      `json:"request_id,omitempty"` // ID của request
}

// SuccessResponse response thành công
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse response kiểm tra sức khỏe
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
