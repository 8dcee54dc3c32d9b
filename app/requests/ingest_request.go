package requests

import "github.com/land-ingest/app/models"

// MergeOptions per-request policy overrides; nil fields fall back to config
type MergeOptions struct {
	AutoMergeWithoutAPN *bool `json:"auto_merge_without_apn,omitempty"`
	PreventCrossZip     *bool `json:"prevent_cross_zip,omitempty"`
	UseCache            bool  `json:"use_cache,omitempty"` // Có sử dụng cache không
}

// MapRowsRequest request map rows sang canonical records
type MapRowsRequest struct {
	Source string       `json:"source,omitempty"`              // Nhãn nguồn (csv, xlsx, ...)
	Rows   []models.Row `json:"rows" binding:"required,min=1"` // Các dòng thô
}

// RecordKeyRequest request tính record key
type RecordKeyRequest struct {
	Record *models.CanonicalRecord `json:"record" binding:"required"`
}

// MatchRequest request so khớp hai records
type MatchRequest struct {
	A *models.CanonicalRecord `json:"a" binding:"required"`
	B *models.CanonicalRecord `json:"b" binding:"required"`
}

// MergeRequest request merge một batch. Incoming may be given as canonical
// records, raw rows, or both (records first).
type MergeRequest struct {
	Existing []*models.CanonicalRecord `json:"existing,omitempty"`
	Incoming []*models.CanonicalRecord `json:"incoming,omitempty"`
	Rows     []models.Row              `json:"rows,omitempty"`
	Source   string                    `json:"source,omitempty"`
	Options  MergeOptions              `json:"options,omitempty"`
}

// InvalidateCacheRequest request invalidate cache
type InvalidateCacheRequest struct {
	PolicyVersion string `json:"policy_version,omitempty"` // rỗng = xóa toàn bộ cache
}
