package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/record"
	"go.uber.org/zap"
)

// Export parts and formats
const (
	ExportReview  = "review"
	ExportInvalid = "invalid"
	ExportRecords = "records"

	FormatJSON = "json"
	FormatCSV  = "csv"
)

var (
	// ErrUnknownExportPart phần dữ liệu export không hợp lệ
	ErrUnknownExportPart = errors.New("unknown export part")
	// ErrUnsupportedExportFormat format export không hỗ trợ
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
)

// AdminService service quản lý admin functions
type AdminService struct {
	ingest        *IngestService
	cache         ICacheService // nil khi không dùng cache
	policyVersion string
	logger        *zap.Logger
}

// SystemStats thống kê hệ thống
type SystemStats struct {
	Uptime        string                 `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	PolicyVersion string                 `json:"policy_version"`
	Ingest        IngestStats            `json:"ingest"`
	Cache         *CacheStats            `json:"cache,omitempty"`
	MemoryUsage   map[string]interface{} `json:"memory_usage"`
	Goroutines    int                    `json:"goroutines"`
}

// NewAdminService tạo mới AdminService
func NewAdminService(ingest *IngestService, cache ICacheService, policyVersion string, logger *zap.Logger) *AdminService {
	return &AdminService{
		ingest:        ingest,
		cache:         cache,
		policyVersion: policyVersion,
		logger:        logger,
	}
}

// GetSystemStats lấy thống kê hệ thống
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(as.ingest.GetStartTime())
	stats := &SystemStats{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		PolicyVersion: as.policyVersion,
		Ingest:        as.ingest.GetStats(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	}

	if as.cache != nil {
		cacheStats, err := as.cache.GetStats(ctx)
		if err != nil {
			as.logger.Warn("Cannot read cache stats", zap.Error(err))
		} else {
			stats.Cache = cacheStats
		}
	}
	return stats, nil
}

// InvalidateCache drops entries of other policy versions, or everything
// when policyVersion is empty.
func (as *AdminService) InvalidateCache(ctx context.Context, policyVersion string) error {
	if as.cache == nil {
		return nil
	}
	if policyVersion == "" {
		return as.cache.Clear(ctx)
	}
	if err := as.cache.InvalidateByPolicyVersion(ctx, policyVersion); err != nil {
		return err
	}
	as.policyVersion = policyVersion
	return nil
}

// ExportJob export review queue, invalid list hoặc records của một job
func (as *AdminService) ExportJob(ctx context.Context, jobID, part, format string) ([]byte, error) {
	result, err := as.ingest.GetJobResults(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var data interface{}
	var rows [][]string
	switch part {
	case ExportReview:
		data = result.ReviewQueue
		rows = reviewRows(result.ReviewQueue)
	case ExportInvalid:
		data = result.Invalid
		rows = invalidRows(result.Invalid)
	case ExportRecords:
		data = result.Records
		rows = recordRows(result.Records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExportPart, part)
	}

	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(data, "", "  ")
	case FormatCSV:
		return writeCSV(rows)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, format)
	}
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func reviewRows(items []models.ReviewItem) [][]string {
	rows := [][]string{{"reason", "score", "existing_key", "incoming_key", "existing_owner", "incoming_owner", "incoming_address", "incoming_apn"}}
	for _, item := range items {
		var existingKey, existingOwner string
		if item.Existing != nil {
			existingKey = record.RecordKey(item.Existing)
			existingOwner = item.Existing.Owner
		}
		in := item.Incoming
		if in == nil {
			in = &models.CanonicalRecord{}
		}
		rows = append(rows, []string{
			item.Reason,
			strconv.FormatFloat(item.Score, 'f', 2, 64),
			existingKey,
			record.RecordKey(in),
			existingOwner,
			in.Owner,
			addressLine(in.Address),
			in.APN,
		})
	}
	return rows
}

func invalidRows(items []models.InvalidItem) [][]string {
	rows := [][]string{{"reason", "source", "owner", "address", "apn", "county"}}
	for _, item := range items {
		r := item.Record
		if r == nil {
			r = &models.CanonicalRecord{}
		}
		rows = append(rows, []string{item.Reason, r.Source, r.Owner, addressLine(r.Address), r.APN, r.County})
	}
	return rows
}

func recordRows(records []*models.CanonicalRecord) [][]string {
	rows := [][]string{{"record_key", "owner", "apn", "county", "address", "phones", "emails", "dnc", "conflicts"}}
	for _, r := range records {
		rows = append(rows, []string{
			record.RecordKey(r),
			r.Owner,
			r.APN,
			r.County,
			addressLine(r.Address),
			strings.Join(r.Phones, ";"),
			strings.Join(r.Emails, ";"),
			strconv.FormatBool(r.DNC),
			strconv.Itoa(len(r.Extra.Conflicts)),
		})
	}
	return rows
}

func addressLine(a models.Address) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Line1, a.City, strings.TrimSpace(a.State + " " + a.Zip)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Helper functions
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
