package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Global    GlobalConfig    `yaml:"global" json:"global"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" json:"snapshot"`
	Analysis  AnalysisConfig  `yaml:"analysis" json:"analysis"`
	CTLogs    CTLogsConfig    `yaml:"ct_logs" json:"ct_logs"`
	Reporting ReportingConfig `yaml:"reporting" json:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	DataDir   string `yaml:"data_dir" json:"data_dir"`
}

type SnapshotConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	AuditFile    string        `yaml:"audit_file" json:"audit_file"`
	DaysToFetch  int           `yaml:"days_to_fetch" json:"days_to_fetch"`
	FilesPerDay  int           `yaml:"files_per_day" json:"files_per_day"`
	CacheDir     string        `yaml:"cache_dir" json:"cache_dir"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`
	RateLimit    int           `yaml:"rate_limit" json:"rate_limit"`
}

type AnalysisConfig struct {
	StaleAgeHours    int   `yaml:"stale_age_hours" json:"stale_age_hours"`
	AnomalyThreshold int64 `yaml:"anomaly_threshold" json:"anomaly_threshold"`
}

type CTLogsConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	ManifestFile string        `yaml:"manifest_file" json:"manifest_file"`
	LookbackDays int           `yaml:"lookback_days" json:"lookback_days"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`
	RateLimit    int           `yaml:"rate_limit" json:"rate_limit"`
}

type ReportingConfig struct {
	HTMLPath   string `yaml:"html_path" json:"html_path"`
	JSONPath   string `yaml:"json_path" json:"json_path"`
	Title      string `yaml:"title" json:"title"`
	URLDisplay int    `yaml:"url_display" json:"url_display"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:  "info",
			UserAgent: "crlwatch/1.0",
			DataDir:   "./data",
		},
		Snapshot: SnapshotConfig{
			BaseURL:      "https://storage.googleapis.com/crlite-filters-prod",
			AuditFile:    "crl-audit.json",
			DaysToFetch:  14,
			FilesPerDay:  2,
			CacheDir:     "./cache",
			FetchTimeout: 30 * time.Second,
			Concurrency:  4,
			RateLimit:    10,
		},
		Analysis: AnalysisConfig{
			StaleAgeHours:    336,
			AnomalyThreshold: 250,
		},
		CTLogs: CTLogsConfig{
			Enabled:      true,
			ManifestFile: "ct-logs.json",
			LookbackDays: 7,
			ProbeTimeout: 5 * time.Second,
			PollTimeout:  10 * time.Second,
			Concurrency:  8,
			RateLimit:    10,
		},
		Reporting: ReportingConfig{
			HTMLPath:   "./output.html",
			JSONPath:   "./issuer_statuses.json",
			Title:      "CRLite CRL Downloader Statuses",
			URLDisplay: 40,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
	}
}

func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Global.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		errs = append(errs, "global.log_level must be one of trace|debug|info|warn|error|fatal|panic")
	}
	if c.Global.UserAgent == "" {
		errs = append(errs, "global.user_agent must not be empty")
	}

	if c.Snapshot.BaseURL == "" {
		errs = append(errs, "snapshot.base_url must not be empty")
	}
	if c.Snapshot.AuditFile == "" {
		errs = append(errs, "snapshot.audit_file must not be empty")
	}
	if c.Snapshot.DaysToFetch <= 0 {
		errs = append(errs, "snapshot.days_to_fetch must be > 0")
	}
	if c.Snapshot.FilesPerDay <= 0 {
		errs = append(errs, "snapshot.files_per_day must be > 0")
	}
	if c.Snapshot.CacheDir == "" {
		errs = append(errs, "snapshot.cache_dir must not be empty")
	}
	if c.Snapshot.FetchTimeout <= 0 {
		errs = append(errs, "snapshot.fetch_timeout must be > 0")
	}
	if c.Snapshot.Concurrency <= 0 {
		errs = append(errs, "snapshot.concurrency must be > 0")
	}
	if c.Snapshot.RateLimit < 0 {
		errs = append(errs, "snapshot.rate_limit must be >= 0")
	}

	if c.Analysis.StaleAgeHours <= 0 {
		errs = append(errs, "analysis.stale_age_hours must be > 0")
	}
	if c.Analysis.AnomalyThreshold < 0 {
		errs = append(errs, "analysis.anomaly_threshold must be >= 0")
	}

	if c.CTLogs.Enabled {
		if c.CTLogs.ManifestFile == "" {
			errs = append(errs, "ct_logs.manifest_file must not be empty when CT log analysis is enabled")
		}
		if c.CTLogs.LookbackDays <= 0 {
			errs = append(errs, "ct_logs.lookback_days must be > 0 when CT log analysis is enabled")
		}
		if c.CTLogs.ProbeTimeout <= 0 || c.CTLogs.PollTimeout <= 0 {
			errs = append(errs, "ct_logs.{probe_timeout,poll_timeout} must be > 0 when CT log analysis is enabled")
		}
		if c.CTLogs.Concurrency <= 0 {
			errs = append(errs, "ct_logs.concurrency must be > 0 when CT log analysis is enabled")
		}
		if c.CTLogs.RateLimit < 0 {
			errs = append(errs, "ct_logs.rate_limit must be >= 0")
		}
	}

	if c.Reporting.HTMLPath == "" {
		errs = append(errs, "reporting.html_path must not be empty")
	}
	if c.Reporting.URLDisplay <= 0 {
		errs = append(errs, "reporting.url_display must be > 0")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr must be set when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		data []byte
		err  error
	)
	switch ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomically write config: %w", err)
	}
	return nil
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	}

	return c.Validate()
}
