package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineCfg default merge policy, overridable per request
type EngineCfg struct {
	AutoMergeWithoutAPN bool `yaml:"auto_merge_without_apn" json:"auto_merge_without_apn"`
	PreventCrossZip     bool `yaml:"prevent_cross_zip" json:"prevent_cross_zip"`
}

// LimitsCfg request size limits
type LimitsCfg struct {
	MaxRecordsPerRequest int `yaml:"max_records_per_request" json:"max_records_per_request"`
	MaxRecordsPerJob     int `yaml:"max_records_per_job" json:"max_records_per_job"`
	RequestTimeoutMs     int `yaml:"request_timeout_ms" json:"request_timeout_ms"`
}

// CacheCfg batch result cache
type CacheCfg struct {
	TTLMinutes    int    `yaml:"ttl_minutes" json:"ttl_minutes"`
	L1Size        int    `yaml:"l1_size" json:"l1_size"`
	PolicyVersion string `yaml:"policy_version" json:"policy_version"`
}

type IngestCfg struct {
	Engine          EngineCfg `yaml:"engine" json:"engine"`
	Limits          LimitsCfg `yaml:"limits" json:"limits"`
	StreetCacheSize int       `yaml:"street_cache_size" json:"street_cache_size"`
	Cache           CacheCfg  `yaml:"cache" json:"cache"`
}

var C = Defaults()

// Defaults giá trị mặc định khi không có file cấu hình
func Defaults() IngestCfg {
	return IngestCfg{
		Engine: EngineCfg{AutoMergeWithoutAPN: true, PreventCrossZip: true},
		Limits: LimitsCfg{
			MaxRecordsPerRequest: 5000,
			MaxRecordsPerJob:     100000,
			RequestTimeoutMs:     1500,
		},
		StreetCacheSize: 4096,
		Cache: CacheCfg{
			TTLMinutes:    60,
			L1Size:        1000,
			PolicyVersion: "v1",
		},
	}
}

// Load đọc file YAML đè lên giá trị mặc định, sau đó áp dụng ENV overrides
func Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return err
	}
	applyEnv(&cfg)
	C = cfg
	return nil
}

func applyEnv(cfg *IngestCfg) {
	// ENV overrides
	switch os.Getenv("PREVENT_CROSS_ZIP") {
	case "0":
		cfg.Engine.PreventCrossZip = false
	case "1":
		cfg.Engine.PreventCrossZip = true
	}
	switch os.Getenv("AUTO_MERGE_WITHOUT_APN") {
	case "0":
		cfg.Engine.AutoMergeWithoutAPN = false
	case "1":
		cfg.Engine.AutoMergeWithoutAPN = true
	}
}

func RequestTimeout() time.Duration {
	if C.Limits.RequestTimeoutMs <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(C.Limits.RequestTimeoutMs) * time.Millisecond
}

func CacheTTL() time.Duration {
	if C.Cache.TTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(C.Cache.TTLMinutes) * time.Minute
}
