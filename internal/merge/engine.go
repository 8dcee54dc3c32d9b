// Package merge resolves a batch of incoming property/owner records against
// an existing set: it blocks on match keys, scores candidates with the
// matcher and decides per record whether to merge, flag for review or
// create.
package merge

import (
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/mapper"
	"github.com/land-ingest/internal/matcher"
	"github.com/land-ingest/internal/record"
	"go.uber.org/zap"
)

// Review and invalid reasons
const (
	ReasonMissingKeys       = "missing APN or address/owner details"
	ReasonZipMismatch       = "zip-mismatch"
	ReasonAutoMergeDisabled = "auto-merge-disabled"
	ReasonLowConfidence     = "low-confidence"
	ReasonDuplicateKey      = "duplicate-key"
)

// Decision thresholds
const (
	AutoMergeScore = 0.90
	ReviewScore    = 0.70
	CrossZipCap    = 0.69
)

// Options per-call merge policy. The zero value disables both
// AutoMergeWithoutAPN and PreventCrossZip; start from DefaultOptions and
// override fields from there.
type Options struct {
	// AutoMergeWithoutAPN merges high scoring pairs that do not share an APN.
	AutoMergeWithoutAPN bool
	// PreventCrossZip caps candidates whose zips differ below the review
	// threshold and flags them.
	PreventCrossZip bool
	// Now time source for synthesized provenance. Defaults to time.Now.
	Now func() time.Time
	// OnProgress is called after each incoming record.
	OnProgress func(processed, total int)
}

// DefaultOptions both policies enabled, wall clock
func DefaultOptions() Options {
	return Options{AutoMergeWithoutAPN: true, PreventCrossZip: true}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Engine runs merge batches. It holds no per-batch state and is safe for
// concurrent use.
type Engine struct {
	mapper *mapper.RowMapper
	logger *zap.Logger
}

// NewEngine creates an engine. The mapper is only needed by MergeRows.
func NewEngine(m *mapper.RowMapper, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{mapper: m, logger: logger}
}

// MergeRows maps raw rows with the row mapper, then merges them.
func (e *Engine) MergeRows(existing []*models.CanonicalRecord, rows []models.Row, source string, opts Options) *models.BatchResult {
	incoming := e.mapper.MapRows(rows, source, opts.now())
	return e.MergeCanonical(existing, incoming, opts)
}

// MergeCanonical merges incoming into existing, one record at a time in
// input order. Later records see the merges and creations of earlier ones.
// Inputs are never modified.
func (e *Engine) MergeCanonical(existing, incoming []*models.CanonicalRecord, opts Options) *models.BatchResult {
	result := models.NewBatchResult()
	records := make([]*models.CanonicalRecord, 0, len(existing)+len(incoming))
	for _, r := range existing {
		records = append(records, record.PrepareAt(r, opts.now()))
	}

	b := &batch{
		opts:    opts,
		logger:  e.logger,
		result:  result,
		records: records,
		index:   buildIndex(records),
	}
	for i, r := range incoming {
		b.process(r)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(incoming))
		}
	}
	result.Records = b.records

	e.logger.Info("Merge batch completed",
		zap.Int("existing", len(existing)),
		zap.Int("processed", result.Summary.Processed),
		zap.Int("created", result.Summary.Created),
		zap.Int("merged", result.Summary.Merged),
		zap.Int("flagged", result.Summary.Flagged),
		zap.Int("invalid", result.Summary.Invalid),
	)
	return result
}

type batch struct {
	opts    Options
	logger  *zap.Logger
	result  *models.BatchResult
	records []*models.CanonicalRecord
	index   *blockIndex
}

type candidate struct {
	idx    int
	detail models.MatchDetail
}

func (b *batch) process(raw *models.CanonicalRecord) {
	b.result.Summary.Processed++
	in := record.PrepareAt(raw, b.opts.now())
	keys := record.Key(in)

	if !keys.Any() {
		b.result.Summary.Invalid++
		b.result.Invalid = append(b.result.Invalid, models.InvalidItem{Record: in, Reason: ReasonMissingKeys})
		b.logger.Debug("Record has no blocking key", zap.String("source", in.Source))
		return
	}

	best := b.best(in, keys)
	switch {
	case best != nil && b.opts.PreventCrossZip && best.detail.ZipMismatch:
		b.flag(b.records[best.idx], in, best.detail.Score, &best.detail, ReasonZipMismatch)

	case best != nil && best.detail.Score >= AutoMergeScore:
		if best.detail.APNMatch || b.opts.AutoMergeWithoutAPN {
			b.merge(best, in)
		} else {
			b.flag(b.records[best.idx], in, best.detail.Score, &best.detail, ReasonAutoMergeDisabled)
		}

	case best != nil && best.detail.Score >= ReviewScore:
		reason := best.detail.Reason
		if reason == "" {
			reason = ReasonLowConfidence
		}
		b.flag(b.records[best.idx], in, best.detail.Score, &best.detail, reason)

	default:
		key := keys.Primary()
		if idx := b.findKey(key); idx >= 0 {
			score, detail := 0.0, (*models.MatchDetail)(nil)
			if best != nil {
				score, detail = best.detail.Score, &best.detail
			}
			b.flag(b.records[idx], in, score, detail, ReasonDuplicateKey)
			return
		}
		b.create(in, key)
	}
}

// best scores every blocked candidate and keeps the strictly highest; ties
// keep the first found.
func (b *batch) best(in *models.CanonicalRecord, keys models.MatchKeys) *candidate {
	var best *candidate
	for _, idx := range b.index.candidates(keys) {
		detail := matcher.DetailsPrepared(b.records[idx], in)
		if b.opts.PreventCrossZip && detail.ZipMismatch {
			if detail.Score > CrossZipCap {
				detail.Score = CrossZipCap
			}
			detail.Reason = ReasonZipMismatch
		}
		if best == nil || detail.Score > best.detail.Score {
			best = &candidate{idx: idx, detail: detail}
		}
	}
	return best
}

// findKey linear scan of the current records for a record key. The blocking
// index normally finds these first.
func (b *batch) findKey(key string) int {
	for idx, r := range b.records {
		if record.RecordKey(r) == key {
			return idx
		}
	}
	return -1
}

func (b *batch) flag(existing, in *models.CanonicalRecord, score float64, detail *models.MatchDetail, reason string) {
	b.result.Summary.Flagged++
	b.result.ReviewQueue = append(b.result.ReviewQueue, models.ReviewItem{
		Existing: existing,
		Incoming: in,
		Score:    score,
		Detail:   detail,
		Reason:   reason,
	})
	b.logger.Debug("Record flagged for review",
		zap.String("reason", reason),
		zap.Float64("score", score),
		zap.String("key", record.RecordKey(in)),
	)
}

func (b *batch) merge(best *candidate, in *models.CanonicalRecord) {
	now := b.opts.now()
	before := b.records[best.idx]
	merged := Merge(before, in, &best.detail, now)

	b.records[best.idx] = merged
	b.index.replace(best.idx, record.Key(before), record.Key(merged))

	b.result.Summary.Merged++
	b.result.Merged = append(b.result.Merged, models.MergedEntry{
		Before:   record.Clone(before),
		After:    merged,
		Incoming: in,
		Detail:   &best.detail,
	})
	if key := record.RecordKey(merged); key != "" {
		b.result.StatusByKey[key] = models.StatusMerged
	}
	b.logger.Debug("Record merged",
		zap.Int("index", best.idx),
		zap.Float64("score", best.detail.Score),
		zap.Bool("apn_match", best.detail.APNMatch),
	)
}

func (b *batch) create(in *models.CanonicalRecord, key string) {
	idx := len(b.records)
	b.records = append(b.records, in)
	b.index.add(idx, record.Key(in))

	b.result.Summary.Created++
	b.result.Created = append(b.result.Created, models.CreatedEntry{Record: in})
	if key != "" {
		b.result.StatusByKey[key] = models.StatusCreated
	}
	b.logger.Debug("Record created", zap.Int("index", idx), zap.String("key", key))
}
