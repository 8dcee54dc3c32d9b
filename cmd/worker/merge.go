package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/land-ingest/app/config"
	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/mapper"
	"github.com/land-ingest/internal/merge"
	"github.com/land-ingest/internal/normalizer"
	"github.com/land-ingest/internal/source"
	"go.uber.org/zap"
)

type mergeOptions struct {
	existing      string
	inputs        []string
	output        string
	source        string
	configPath    string
	allowCrossZip bool
	requireAPN    bool
	summaryOnly   bool
	verbose       bool

	now func() time.Time
}

func runMerge(opts *mergeOptions) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := config.Load(opts.configPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Debug("Config file not found, using defaults", zap.String("path", opts.configPath))
	}
	if err := normalizer.SetStreetCacheSize(config.C.StreetCacheSize); err != nil {
		return err
	}

	existing, err := source.ReadRecords(opts.existing)
	if err != nil {
		return fmt.Errorf("read existing records: %w", err)
	}

	rowMapper, err := mapper.New()
	if err != nil {
		return err
	}

	now := time.Now
	if opts.now != nil {
		now = opts.now
	}

	type input struct {
		rows  []models.Row
		label string
	}
	inputs := make([]input, 0, len(opts.inputs))
	for _, path := range opts.inputs {
		rows, label, err := source.ReadRows(path)
		if err != nil {
			return err
		}
		if opts.source != "" {
			label = opts.source
		}
		inputs = append(inputs, input{rows: rows, label: label})
		logger.Info("Loaded input", zap.String("file", path), zap.Int("rows", len(rows)))
	}

	mergeOpts := merge.Options{
		AutoMergeWithoutAPN: config.C.Engine.AutoMergeWithoutAPN && !opts.requireAPN,
		PreventCrossZip:     config.C.Engine.PreventCrossZip && !opts.allowCrossZip,
		Now:                 now,
	}
	engine := merge.NewEngine(rowMapper, logger)

	var result *models.BatchResult
	if len(inputs) == 1 {
		result = engine.MergeRows(existing, inputs[0].rows, inputs[0].label, mergeOpts)
	} else {
		// each file keeps its own provenance label
		var incoming []*models.CanonicalRecord
		for _, in := range inputs {
			incoming = append(incoming, rowMapper.MapRows(in.rows, in.label, now())...)
		}
		result = engine.MergeCanonical(existing, incoming, mergeOpts)
	}

	if opts.summaryOnly {
		return source.WriteJSON(opts.output, result.Summary)
	}
	return source.WriteJSON(opts.output, result)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
