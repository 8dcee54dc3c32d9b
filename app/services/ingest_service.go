package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/land-ingest/app/config"
	"github.com/land-ingest/app/models"
	"github.com/land-ingest/app/requests"
	"github.com/land-ingest/helpers/utils"
	"github.com/land-ingest/internal/mapper"
	"github.com/land-ingest/internal/matcher"
	"github.com/land-ingest/internal/merge"
	"github.com/land-ingest/internal/record"
	"go.uber.org/zap"
)

var (
	// ErrJobNotFound job ID không tồn tại
	ErrJobNotFound = errors.New("job not found")
	// ErrTooManyRecords batch vượt quá giới hạn cấu hình
	ErrTooManyRecords = errors.New("too many records")
	// ErrEmptyBatch không có incoming record nào
	ErrEmptyBatch = errors.New("no incoming records or rows")
)

// Job status values
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// recordsPerSecond rough engine throughput used for job estimates
const recordsPerSecond = 2000

// JobStatus trạng thái của job
type JobStatus struct {
	JobID              string
	Status             string
	Progress           float64
	Processed          int
	Total              int
	EstimatedRemaining int
	Message            string
	Summary            *models.BatchSummary
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IngestStats counters since process start
type IngestStats struct {
	Batches    int64 `json:"batches"`
	Processed  int64 `json:"processed"`
	Created    int64 `json:"created"`
	Merged     int64 `json:"merged"`
	Flagged    int64 `json:"flagged"`
	Invalid    int64 `json:"invalid"`
	CacheHits  int64 `json:"cache_hits"`
	Jobs       int   `json:"jobs"`
	ActiveJobs int   `json:"active_jobs"`
}

// IngestService maps, matches and merges property/owner records and runs
// asynchronous merge jobs.
type IngestService struct {
	mapper    *mapper.RowMapper
	engine    *merge.Engine
	cache     ICacheService // nil khi không dùng cache
	logger    *zap.Logger
	startTime time.Time
	now       func() time.Time

	mu         sync.RWMutex
	stats      IngestStats
	jobs       map[string]*JobStatus
	jobResults map[string]*models.BatchResult
}

// NewIngestService tạo mới IngestService
func NewIngestService(m *mapper.RowMapper, engine *merge.Engine, cache ICacheService, logger *zap.Logger) *IngestService {
	return &IngestService{
		mapper:     m,
		engine:     engine,
		cache:      cache,
		logger:     logger,
		startTime:  time.Now(),
		now:        time.Now,
		jobs:       make(map[string]*JobStatus),
		jobResults: make(map[string]*models.BatchResult),
	}
}

// MapRows maps raw rows to prepared canonical records.
func (s *IngestService) MapRows(rows []models.Row, source string) ([]*models.CanonicalRecord, error) {
	if limit := config.C.Limits.MaxRecordsPerRequest; limit > 0 && len(rows) > limit {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRecords, len(rows), limit)
	}
	return s.mapper.MapRows(rows, source, s.now()), nil
}

// RecordKey record identity and all three blocking keys
func (s *IngestService) RecordKey(r *models.CanonicalRecord) (string, models.MatchKeys) {
	keys := record.Key(record.PrepareAt(r, s.now()))
	return keys.Primary(), keys
}

// Match scores two records.
func (s *IngestService) Match(a, b *models.CanonicalRecord) models.MatchDetail {
	return matcher.Details(a, b)
}

// Options merges request overrides over the configured engine defaults.
func (s *IngestService) Options(o requests.MergeOptions) merge.Options {
	opts := merge.Options{
		AutoMergeWithoutAPN: config.C.Engine.AutoMergeWithoutAPN,
		PreventCrossZip:     config.C.Engine.PreventCrossZip,
		Now:                 s.now,
	}
	if o.AutoMergeWithoutAPN != nil {
		opts.AutoMergeWithoutAPN = *o.AutoMergeWithoutAPN
	}
	if o.PreventCrossZip != nil {
		opts.PreventCrossZip = *o.PreventCrossZip
	}
	return opts
}

// Merge runs one batch synchronously. With UseCache set and a cache
// configured, identical requests under the same policy return the cached
// result.
func (s *IngestService) Merge(ctx context.Context, req *requests.MergeRequest) (*models.BatchResult, bool, error) {
	if _, err := checkBatch(req, config.C.Limits.MaxRecordsPerRequest); err != nil {
		return nil, false, err
	}
	opts := s.Options(req.Options)

	var cacheKey string
	if req.Options.UseCache && s.cache != nil {
		var err error
		cacheKey, err = s.fingerprint(req, opts)
		if err != nil {
			return nil, false, err
		}
		if cached, found, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("Cache lookup failed", zap.Error(err))
		} else if found {
			s.mu.Lock()
			s.stats.CacheHits++
			s.mu.Unlock()
			return cached, true, nil
		}
	}

	result := s.mergeBatch(req, opts)
	s.record(result.Summary)

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, result); err != nil {
			s.logger.Warn("Cache store failed", zap.Error(err))
		}
	}
	return result, false, nil
}

// EstimateJobSeconds ước tính thời gian xử lý (giây)
func (s *IngestService) EstimateJobSeconds(records int) int {
	seconds := records / recordsPerSecond
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// StartMergeJob registers a pending job and runs it in the background.
func (s *IngestService) StartMergeJob(req *requests.MergeRequest) (*JobStatus, error) {
	total, err := checkBatch(req, config.C.Limits.MaxRecordsPerJob)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &JobStatus{
		JobID:              utils.GenerateJobID(),
		Status:             JobStatusPending,
		Total:              total,
		EstimatedRemaining: s.EstimateJobSeconds(total),
		Message:            "Queued",
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	snapshot := *job
	s.mu.Unlock()

	go s.runMergeJob(job.JobID, req, s.Options(req.Options))
	return &snapshot, nil
}

func (s *IngestService) runMergeJob(jobID string, req *requests.MergeRequest, opts merge.Options) {
	started := time.Now()
	s.updateJob(jobID, func(job *JobStatus) {
		job.Status = JobStatusRunning
		job.Message = "Processing"
	})

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Merge job panicked", zap.String("job_id", jobID), zap.Any("panic", r))
			s.updateJob(jobID, func(job *JobStatus) {
				job.Status = JobStatusFailed
				job.Message = fmt.Sprintf("internal error: %v", r)
			})
		}
	}()

	opts.OnProgress = func(processed, total int) {
		s.updateJob(jobID, func(job *JobStatus) {
			job.Processed = processed
			job.Progress = float64(processed) / float64(total)
			if elapsed := time.Since(started).Seconds(); processed > 0 {
				job.EstimatedRemaining = int(elapsed / float64(processed) * float64(total-processed))
			}
		})
	}

	result := s.mergeBatch(req, opts)
	s.record(result.Summary)

	s.mu.Lock()
	s.jobResults[jobID] = result
	s.mu.Unlock()

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.cache.Set(ctx, jobID, result); err != nil {
			s.logger.Warn("Cannot persist job result", zap.String("job_id", jobID), zap.Error(err))
		}
		cancel()
	}

	summary := result.Summary
	s.updateJob(jobID, func(job *JobStatus) {
		job.Status = JobStatusDone
		job.Progress = 1
		job.Processed = summary.Processed
		job.EstimatedRemaining = 0
		job.Summary = &summary
		job.Message = "Completed"
	})

	s.logger.Info("Merge job completed",
		zap.String("job_id", jobID),
		zap.Int("total_records", summary.Processed),
		zap.Duration("elapsed", time.Since(started)))
}

func (s *IngestService) updateJob(jobID string, fn func(job *JobStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, exists := s.jobs[jobID]; exists {
		fn(job)
		job.UpdatedAt = s.now()
	}
}

// GetJobStatus snapshot of a job's status
func (s *IngestService) GetJobStatus(jobID string) (*JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// GetJobResults result of a finished job, from memory or the result cache.
func (s *IngestService) GetJobResults(ctx context.Context, jobID string) (*models.BatchResult, error) {
	s.mu.RLock()
	result, exists := s.jobResults[jobID]
	s.mu.RUnlock()
	if exists {
		return result, nil
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("load job result: %w", err)
		}
		if found {
			return cached, nil
		}
	}
	return nil, ErrJobNotFound
}

// GetJobRecordStream streams the final records of a job. The channel is
// closed after the last record or when ctx is done.
func (s *IngestService) GetJobRecordStream(ctx context.Context, jobID string) (<-chan *models.CanonicalRecord, error) {
	result, err := s.GetJobResults(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.CanonicalRecord, 100)
	go func() {
		defer close(out)
		for _, r := range result.Records {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// GetStartTime thời điểm service khởi động
func (s *IngestService) GetStartTime() time.Time {
	return s.startTime
}

// GetStats lấy thống kê xử lý
func (s *IngestService) GetStats() IngestStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.Jobs = len(s.jobs)
	for _, job := range s.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			stats.ActiveJobs++
		}
	}
	return stats
}

func (s *IngestService) record(summary models.BatchSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Batches++
	s.stats.Processed += int64(summary.Processed)
	s.stats.Created += int64(summary.Created)
	s.stats.Merged += int64(summary.Merged)
	s.stats.Flagged += int64(summary.Flagged)
	s.stats.Invalid += int64(summary.Invalid)
}

// checkBatch số incoming record (canonical + rows) của request, kiểm tra limit
func checkBatch(req *requests.MergeRequest, limit int) (int, error) {
	total := len(req.Incoming) + len(req.Rows)
	if total == 0 {
		return 0, ErrEmptyBatch
	}
	if limit > 0 && total+len(req.Existing) > limit {
		return 0, fmt.Errorf("%w: %d records, limit %d", ErrTooManyRecords, total+len(req.Existing), limit)
	}
	return total, nil
}

// mergeBatch merges the request's canonical records followed by its mapped
// rows. Row-only requests go straight through the engine's row path.
func (s *IngestService) mergeBatch(req *requests.MergeRequest, opts merge.Options) *models.BatchResult {
	if len(req.Incoming) == 0 {
		return s.engine.MergeRows(req.Existing, req.Rows, req.Source, opts)
	}
	incoming := make([]*models.CanonicalRecord, 0, len(req.Incoming)+len(req.Rows))
	incoming = append(incoming, req.Incoming...)
	incoming = append(incoming, s.mapper.MapRows(req.Rows, req.Source, s.now())...)
	return s.engine.MergeCanonical(req.Existing, incoming, opts)
}

// fingerprint cache key of a merge request under the effective policy
func (s *IngestService) fingerprint(req *requests.MergeRequest, opts merge.Options) (string, error) {
	payload, err := json.Marshal(struct {
		Existing            []*models.CanonicalRecord `json:"existing"`
		Incoming            []*models.CanonicalRecord `json:"incoming"`
		Rows                []models.Row              `json:"rows"`
		Source              string                    `json:"source"`
		AutoMergeWithoutAPN bool                      `json:"auto_merge_without_apn"`
		PreventCrossZip     bool                      `json:"prevent_cross_zip"`
	}{req.Existing, req.Incoming, req.Rows, req.Source, opts.AutoMergeWithoutAPN, opts.PreventCrossZip})
	if err != nil {
		return "", fmt.Errorf("fingerprint merge request: %w", err)
	}
	return "merge:" + utils.Fingerprint(string(payload)), nil
}
