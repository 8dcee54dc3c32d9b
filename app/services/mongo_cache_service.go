package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/land-ingest/app/models"
	"github.com/land-ingest/helpers/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const batchCacheCollection = "batch_cache"

// MongoCacheService persistent cache service sử dụng MongoDB + LRU in-memory
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, *models.BatchResult] // LRU in-memory cache
	logger     *zap.Logger
	ttl        time.Duration

	mu            sync.RWMutex
	policyVersion string

	// Metrics
	totalHits atomic.Int64
	totalMiss atomic.Int64
	l1Hits    atomic.Int64
	l1Miss    atomic.Int64
}

// NewMongoCacheService tạo mới MongoCacheService
func NewMongoCacheService(db *mongo.Database, l1Size int, policyVersion string, ttl time.Duration, logger *zap.Logger) (*MongoCacheService, error) {
	// Tạo LRU cache
	l1Cache, err := lru.New[string, *models.BatchResult](l1Size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	collection := db.Collection(batchCacheCollection)

	// Tạo indexes cho performance
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{bson.E{Key: "policy_version", Value: 1}},
		},
		{
			Keys: bson.D{bson.E{Key: "last_accessed", Value: 1}},
		},
	}
	if ttl > 0 {
		indexModels = append(indexModels, mongo.IndexModel{
			Keys:    bson.D{bson.E{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("Cannot create batch_cache indexes", zap.Error(err))
	}

	return &MongoCacheService{
		collection:    collection,
		l1Cache:       l1Cache,
		logger:        logger,
		ttl:           ttl,
		policyVersion: policyVersion,
	}, nil
}

func (mcs *MongoCacheService) currentVersion() string {
	mcs.mu.RLock()
	defer mcs.mu.RUnlock()
	return mcs.policyVersion
}

// Get lấy batch result từ cache (L1 → MongoDB)
func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.BatchResult, bool, error) {
	// 1. Thử L1 cache trước (in-memory LRU)
	if result, found := mcs.l1Cache.Get(key); found {
		mcs.l1Hits.Add(1)
		mcs.totalHits.Add(1)
		mcs.logger.Debug("L1 cache hit", zap.String("key", key))
		return result, true, nil
	}
	mcs.l1Miss.Add(1)

	// 2. Thử MongoDB persistent cache
	fingerprint := utils.Fingerprint(key)

	var entry models.BatchCache
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": fingerprint}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			mcs.totalMiss.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query batch cache: %w", err)
	}

	if !entry.IsValidPolicyVersion(mcs.currentVersion()) || entry.IsExpired(mcs.ttl) {
		mcs.totalMiss.Add(1)
		return nil, false, nil
	}

	var result models.BatchResult
	if err := json.Unmarshal(entry.Payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached batch result: %w", err)
	}
	mcs.totalHits.Add(1)

	// Update last_accessed và access_count
	go mcs.updateAccessStats(entry.ID)

	// Lưu vào L1 cache cho lần sau
	mcs.l1Cache.Add(key, &result)

	mcs.logger.Debug("MongoDB cache hit",
		zap.String("key", key),
		zap.String("fingerprint", fingerprint))

	return &result, true, nil
}

// Set lưu batch result vào cache (L1 + MongoDB)
func (mcs *MongoCacheService) Set(ctx context.Context, key string, result *models.BatchResult) error {
	mcs.l1Cache.Add(key, result)

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal batch result: %w", err)
	}

	fingerprint := utils.Fingerprint(key)
	now := time.Now()
	entry := models.BatchCache{
		Fingerprint:   fingerprint,
		CacheKey:      key,
		PolicyVersion: mcs.currentVersion(),
		Payload:       payload,
		Summary:       result.Summary,
		RecordCount:   len(result.Records),
		CreatedAt:     now,
		LastAccessed:  now,
		AccessCount:   1,
	}

	// Upsert to MongoDB
	opts := options.Replace().SetUpsert(true)
	if _, err := mcs.collection.ReplaceOne(ctx, bson.M{"fingerprint": fingerprint}, entry, opts); err != nil {
		mcs.logger.Error("Cannot store batch result in MongoDB",
			zap.Error(err),
			zap.String("fingerprint", fingerprint))
		return fmt.Errorf("store batch cache: %w", err)
	}

	mcs.logger.Debug("Stored batch result",
		zap.String("key", key),
		zap.String("fingerprint", fingerprint),
		zap.Int("records", entry.RecordCount))
	return nil
}

// Delete xóa key khỏi cache
func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	mcs.l1Cache.Remove(key)

	if _, err := mcs.collection.DeleteOne(ctx, bson.M{"fingerprint": utils.Fingerprint(key)}); err != nil {
		return fmt.Errorf("delete batch cache: %w", err)
	}
	return nil
}

// Clear xóa tất cả cache
func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()

	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear batch cache: %w", err)
	}

	// Reset metrics
	mcs.totalHits.Store(0)
	mcs.totalMiss.Store(0)
	mcs.l1Hits.Store(0)
	mcs.l1Miss.Store(0)
	return nil
}

// InvalidateByPolicyVersion xóa entries có policy_version khác
func (mcs *MongoCacheService) InvalidateByPolicyVersion(ctx context.Context, policyVersion string) error {
	// L1 không lưu version, clear toàn bộ
	mcs.l1Cache.Purge()

	mcs.mu.Lock()
	mcs.policyVersion = policyVersion
	mcs.mu.Unlock()

	result, err := mcs.collection.DeleteMany(ctx, bson.M{"policy_version": bson.M{"$ne": policyVersion}})
	if err != nil {
		return fmt.Errorf("invalidate batch cache: %w", err)
	}

	mcs.logger.Info("Invalidated MongoDB cache",
		zap.String("policy_version", policyVersion),
		zap.Int64("deleted_count", result.DeletedCount))
	return nil
}

// GetStats lấy thống kê cache
func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{"policy_version": mcs.currentVersion()})
	if err != nil {
		return nil, fmt.Errorf("count batch cache: %w", err)
	}

	hits, misses := mcs.totalHits.Load(), mcs.totalMiss.Load()
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	mcs.logger.Debug("Cache stats",
		zap.Float64("hit_rate", hitRate),
		zap.Int64("l1_hits", mcs.l1Hits.Load()),
		zap.Int64("l1_miss", mcs.l1Miss.Load()),
		zap.Int("l1_size", mcs.l1Cache.Len()),
		zap.Int64("mongo_count", count))

	return &CacheStats{
		HitRate:    hitRate,
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: count,
	}, nil
}

// Exists kiểm tra key có tồn tại không
func (mcs *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if mcs.l1Cache.Contains(key) {
		return true, nil
	}

	count, err := mcs.collection.CountDocuments(ctx, bson.M{
		"fingerprint":    utils.Fingerprint(key),
		"policy_version": mcs.currentVersion(),
	})
	if err != nil {
		return false, fmt.Errorf("check batch cache: %w", err)
	}
	return count > 0, nil
}

// GetTTL thời gian còn lại trước khi TTL index xóa document
func (mcs *MongoCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	if mcs.ttl <= 0 {
		return 0, nil
	}
	var entry models.BatchCache
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": utils.Fingerprint(key)}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query batch cache: %w", err)
	}
	remaining := mcs.ttl - time.Since(entry.CreatedAt)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Close đóng kết nối (MongoDB connection được quản lý bởi caller)
func (mcs *MongoCacheService) Close() error {
	return nil
}

// updateAccessStats cập nhật thống kê truy cập (async)
func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	}
	if _, err := mcs.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		mcs.logger.Warn("Cannot update access stats", zap.Error(err))
	}
}

// WarmUp làm nóng L1 từ các entry được truy cập nhiều nhất
func (mcs *MongoCacheService) WarmUp(ctx context.Context, limit int) error {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := mcs.collection.Find(ctx, bson.M{"policy_version": mcs.currentVersion()}, opts)
	if err != nil {
		return fmt.Errorf("warm up batch cache: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var entry models.BatchCache
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("Cannot decode cache entry during warm up", zap.Error(err))
			continue
		}
		var result models.BatchResult
		if err := json.Unmarshal(entry.Payload, &result); err != nil {
			mcs.logger.Warn("Cannot decode cached payload during warm up", zap.Error(err))
			continue
		}
		mcs.l1Cache.Add(entry.CacheKey, &result)
		count++
	}

	mcs.logger.Info("Cache warm up completed",
		zap.Int("loaded_items", count),
		zap.Int("l1_size", mcs.l1Cache.Len()))
	return cursor.Err()
}
