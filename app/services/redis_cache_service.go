package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "land_ingest:"

// RedisCacheService cache service sử dụng Redis. Keys are namespaced by
// policy version: land_ingest:<version>:<key>.
type RedisCacheService struct {
	client        *redis.Client
	logger        *zap.Logger
	ttl           time.Duration
	policyVersion atomic.Value // string

	// Stats
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService tạo mới Redis cache service
func NewRedisCacheService(redisURL, policyVersion string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return newRedisCacheService(client, policyVersion, ttl, logger), nil
}

func newRedisCacheService(client *redis.Client, policyVersion string, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour // TTL mặc định 24h
	}
	rcs := &RedisCacheService{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
	rcs.policyVersion.Store(policyVersion)
	return rcs
}

func (rcs *RedisCacheService) versionPrefix(version string) string {
	return redisKeyPrefix + version + ":"
}

func (rcs *RedisCacheService) cacheKey(key string) string {
	return rcs.versionPrefix(rcs.policyVersion.Load().(string)) + key
}

// Get lấy batch result từ cache
func (rcs *RedisCacheService) Get(ctx context.Context, key string) (*models.BatchResult, bool, error) {
	cacheKey := rcs.cacheKey(key)

	val, err := rcs.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		rcs.logger.Error("Redis get failed", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, err
	}

	var result models.BatchResult
	if err := json.Unmarshal(val, &result); err != nil {
		rcs.logger.Error("Cached batch result is corrupt", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, err
	}

	rcs.hits.Add(1)
	rcs.logger.Debug("Redis cache hit", zap.String("key", key))
	return &result, true, nil
}

// Set lưu batch result vào cache
func (rcs *RedisCacheService) Set(ctx context.Context, key string, result *models.BatchResult) error {
	cacheKey := rcs.cacheKey(key)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal batch result: %w", err)
	}

	if err := rcs.client.Set(ctx, cacheKey, data, rcs.ttl).Err(); err != nil {
		rcs.logger.Error("Redis set failed", zap.Error(err), zap.String("key", cacheKey))
		return err
	}

	rcs.logger.Debug("Stored in Redis cache", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Delete xóa key khỏi cache
func (rcs *RedisCacheService) Delete(ctx context.Context, key string) error {
	cacheKey := rcs.cacheKey(key)

	if err := rcs.client.Del(ctx, cacheKey).Err(); err != nil {
		rcs.logger.Error("Redis delete failed", zap.Error(err), zap.String("key", cacheKey))
		return err
	}
	return nil
}

// Clear xóa toàn bộ cache
func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	deleted, err := rcs.deleteMatching(ctx, redisKeyPrefix+"*", func(string) bool { return true })
	if err != nil {
		return err
	}
	rcs.hits.Store(0)
	rcs.misses.Store(0)
	rcs.logger.Info("Cleared Redis cache", zap.Int("keys_deleted", deleted))
	return nil
}

// InvalidateByPolicyVersion xóa keys của các policy version khác và chuyển
// sang version mới
func (rcs *RedisCacheService) InvalidateByPolicyVersion(ctx context.Context, policyVersion string) error {
	keep := rcs.versionPrefix(policyVersion)
	deleted, err := rcs.deleteMatching(ctx, redisKeyPrefix+"*", func(k string) bool {
		return len(k) < len(keep) || k[:len(keep)] != keep
	})
	if err != nil {
		return err
	}
	rcs.policyVersion.Store(policyVersion)
	rcs.logger.Info("Invalidated Redis cache",
		zap.String("policy_version", policyVersion),
		zap.Int("keys_deleted", deleted))
	return nil
}

func (rcs *RedisCacheService) deleteMatching(ctx context.Context, pattern string, match func(string) bool) (int, error) {
	deleted := 0
	iter := rcs.client.Scan(ctx, 0, pattern, 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("delete keys: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		if !match(iter.Val()) {
			continue
		}
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan keys: %w", err)
	}
	return deleted, flush()
}

// GetStats lấy thống kê cache
func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := rcs.hits.Load(), rcs.misses.Load()
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	totalItems := int64(0)
	iter := rcs.client.Scan(ctx, 0, rcs.cacheKey("*"), 500).Iterator()
	for iter.Next(ctx) {
		totalItems++
	}
	if err := iter.Err(); err != nil {
		rcs.logger.Warn("Cannot count Redis keys", zap.Error(err))
	}

	return &CacheStats{
		HitRate:    hitRate,
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: totalItems,
	}, nil
}

// Exists kiểm tra key có tồn tại không
func (rcs *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := rcs.client.Exists(ctx, rcs.cacheKey(key)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// GetTTL lấy TTL của key
func (rcs *RedisCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return rcs.client.TTL(ctx, rcs.cacheKey(key)).Result()
}

// Close đóng kết nối Redis
func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
