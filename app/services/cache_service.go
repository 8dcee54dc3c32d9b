package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/land-ingest/app/models"
)

type memoryEntry struct {
	result        *models.BatchResult
	storedAt      time.Time
	policyVersion string
}

// CacheService service quản lý cache in-memory
type CacheService struct {
	entries       map[string]memoryEntry
	mu            sync.RWMutex
	ttl           time.Duration
	policyVersion string
	now           func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService tạo mới CacheService
func NewCacheService(ttl time.Duration, policyVersion string) *CacheService {
	return &CacheService{
		entries:       make(map[string]memoryEntry),
		ttl:           ttl,
		policyVersion: policyVersion,
		now:           time.Now,
	}
}

// Get lấy kết quả từ cache
func (cs *CacheService) Get(ctx context.Context, key string) (*models.BatchResult, bool, error) {
	cs.mu.RLock()
	entry, exists := cs.entries[key]
	cs.mu.RUnlock()

	if !exists || cs.isExpired(entry) {
		cs.misses.Add(1)
		if exists {
			// Xóa item hết hạn
			cs.mu.Lock()
			if current, ok := cs.entries[key]; ok && cs.isExpired(current) {
				delete(cs.entries, key)
			}
			cs.mu.Unlock()
		}
		return nil, false, nil
	}

	cs.hits.Add(1)
	return entry.result, true, nil
}

// Set lưu kết quả vào cache
func (cs *CacheService) Set(ctx context.Context, key string, result *models.BatchResult) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[key] = memoryEntry{
		result:        result,
		storedAt:      cs.now(),
		policyVersion: cs.policyVersion,
	}
	return nil
}

// Delete xóa item khỏi cache
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.entries, key)
	return nil
}

// Clear xóa toàn bộ cache
func (cs *CacheService) Clear(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries = make(map[string]memoryEntry)
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

// InvalidateByPolicyVersion xóa các entry của policy version khác, entry mới
// sẽ được gắn version này
func (cs *CacheService) InvalidateByPolicyVersion(ctx context.Context, policyVersion string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key, entry := range cs.entries {
		if entry.policyVersion != policyVersion {
			delete(cs.entries, key)
		}
	}
	cs.policyVersion = policyVersion
	return nil
}

// Size lấy kích thước cache
func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.entries)
}

// GetStats lấy thống kê cache
func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	cs.mu.RLock()
	active := int64(0)
	for _, entry := range cs.entries {
		if !cs.isExpired(entry) {
			active++
		}
	}
	cs.mu.RUnlock()

	hits, misses := cs.hits.Load(), cs.misses.Load()
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return &CacheStats{
		HitRate:    hitRate,
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: active,
	}, nil
}

// CleanupExpired xóa các item hết hạn
func (cs *CacheService) CleanupExpired() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key, entry := range cs.entries {
		if cs.isExpired(entry) {
			delete(cs.entries, key)
		}
	}
}

// isExpired kiểm tra item có hết hạn không
func (cs *CacheService) isExpired(entry memoryEntry) bool {
	return cs.ttl > 0 && cs.now().Sub(entry.storedAt) > cs.ttl
}

// Exists kiểm tra key có tồn tại không
func (cs *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.entries[key]
	return exists && !cs.isExpired(entry), nil
}

// GetTTL lấy TTL còn lại của key
func (cs *CacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.entries[key]
	if !exists {
		return 0, nil
	}

	remaining := cs.ttl - cs.now().Sub(entry.storedAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// StartCleanupWorker khởi động worker dọn dẹp cache cho tới khi ctx bị hủy
func (cs *CacheService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// Close đóng kết nối (không cần thiết cho in-memory cache)
func (cs *CacheService) Close() error {
	return nil
}
