package services

import (
	"context"
	"time"

	"github.com/land-ingest/app/models"
)

// CacheStats thống kê cache
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService cache of merge batch results, keyed by request fingerprint
// or job ID
type ICacheService interface {
	// Get lấy batch result từ cache
	Get(ctx context.Context, key string) (*models.BatchResult, bool, error)

	// Set lưu batch result vào cache
	Set(ctx context.Context, key string, result *models.BatchResult) error

	// Delete xóa key khỏi cache
	Delete(ctx context.Context, key string) error

	// Clear xóa tất cả cache
	Clear(ctx context.Context) error

	// InvalidateByPolicyVersion drops every entry computed under a policy
	// version other than the given one
	InvalidateByPolicyVersion(ctx context.Context, policyVersion string) error

	// GetStats lấy thống kê cache
	GetStats(ctx context.Context) (*CacheStats, error)

	// Exists kiểm tra key có tồn tại không
	Exists(ctx context.Context, key string) (bool, error)

	// GetTTL lấy TTL còn lại của key
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// Close đóng kết nối (nếu cần)
	Close() error
}
