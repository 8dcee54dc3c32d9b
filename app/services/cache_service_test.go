package services

import (
	"context"
	"testing"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration, version string) (*CacheService, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cs := NewCacheService(ttl, version)
	cs.now = clock.Now
	return cs, clock
}

func batchWithSummary(processed int) *models.BatchResult {
	r := models.NewBatchResult()
	r.Summary.Processed = processed
	return r
}

func TestCacheService_TTL(t *testing.T) {
	ctx := context.Background()
	cs, clock := newTestCache(time.Minute, "v1")

	require.NoError(t, cs.Set(ctx, "k", batchWithSummary(3)))

	got, found, err := cs.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, got.Summary.Processed)

	ttl, err := cs.GetTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(2 * time.Minute)
	_, found, err = cs.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, cs.Size())

	stats, err := cs.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestCacheService_CleanupAndExists(t *testing.T) {
	ctx := context.Background()
	cs, clock := newTestCache(time.Minute, "v1")

	require.NoError(t, cs.Set(ctx, "old", batchWithSummary(1)))
	clock.Advance(45 * time.Second)
	require.NoError(t, cs.Set(ctx, "new", batchWithSummary(2)))
	clock.Advance(30 * time.Second)

	exists, _ := cs.Exists(ctx, "old")
	assert.False(t, exists)
	exists, _ = cs.Exists(ctx, "new")
	assert.True(t, exists)

	cs.CleanupExpired()
	assert.Equal(t, 1, cs.Size())
}

func TestCacheService_InvalidateByPolicyVersion(t *testing.T) {
	ctx := context.Background()
	cs, _ := newTestCache(0, "v1")

	require.NoError(t, cs.Set(ctx, "a", batchWithSummary(1)))
	require.NoError(t, cs.InvalidateByPolicyVersion(ctx, "v2"))
	require.NoError(t, cs.Set(ctx, "b", batchWithSummary(2)))

	_, found, _ := cs.Get(ctx, "a")
	assert.False(t, found)
	_, found, _ = cs.Get(ctx, "b")
	assert.True(t, found)

	require.NoError(t, cs.InvalidateByPolicyVersion(ctx, "v2"))
	assert.Equal(t, 1, cs.Size())

	require.NoError(t, cs.Clear(ctx))
	assert.Equal(t, 0, cs.Size())
}

func TestHybridCacheService_FallsBackAndBackfills(t *testing.T) {
	ctx := context.Background()
	l1, _ := newTestCache(0, "v1")
	l2, _ := newTestCache(0, "v1")
	hybrid := NewHybridCacheService(l1, l2, zap.NewNop())

	require.NoError(t, l2.Set(ctx, "job_1", batchWithSummary(7)))

	got, found, err := hybrid.Get(ctx, "job_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 7, got.Summary.Processed)

	assert.Eventually(t, func() bool {
		exists, _ := l1.Exists(ctx, "job_1")
		return exists
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hybrid.Set(ctx, "job_2", batchWithSummary(1)))
	assert.Equal(t, 2, l1.Size())
	assert.Equal(t, 2, l2.Size())

	require.NoError(t, hybrid.Delete(ctx, "job_2"))
	exists, err := hybrid.Exists(ctx, "job_2")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, hybrid.InvalidateByPolicyVersion(ctx, "v2"))
	assert.Equal(t, 0, l1.Size())
	assert.Equal(t, 0, l2.Size())
	assert.NoError(t, hybrid.Close())
}
