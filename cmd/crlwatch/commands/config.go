package commands

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/crlwatch/crlwatch/pkg/models"
	"github.com/crlwatch/crlwatch/pkg/utils"
)

// buildConfig materializes the effective configuration from viper, which at
// this point has merged defaults, the config file, environment variables, and
// bound flags.
func buildConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()

	cfg.Global.LogLevel = viper.GetString("log_level")
	cfg.Global.UserAgent = viper.GetString("global.user_agent")
	cfg.Global.DataDir = viper.GetString("global.data_dir")

	cfg.Snapshot.BaseURL = viper.GetString("snapshot.base_url")
	cfg.Snapshot.AuditFile = viper.GetString("snapshot.audit_file")
	cfg.Snapshot.DaysToFetch = viper.GetInt("snapshot.days_to_fetch")
	cfg.Snapshot.FilesPerDay = viper.GetInt("snapshot.files_per_day")
	cfg.Snapshot.CacheDir = viper.GetString("snapshot.cache_dir")
	cfg.Snapshot.FetchTimeout = viper.GetDuration("snapshot.fetch_timeout")
	cfg.Snapshot.Concurrency = viper.GetInt("snapshot.concurrency")
	cfg.Snapshot.RateLimit = viper.GetInt("snapshot.rate_limit")

	cfg.Analysis.StaleAgeHours = viper.GetInt("analysis.stale_age_hours")
	cfg.Analysis.AnomalyThreshold = viper.GetInt64("analysis.anomaly_threshold")

	cfg.CTLogs.Enabled = viper.GetBool("ct_logs.enabled")
	cfg.CTLogs.ManifestFile = viper.GetString("ct_logs.manifest_file")
	cfg.CTLogs.LookbackDays = viper.GetInt("ct_logs.lookback_days")
	cfg.CTLogs.ProbeTimeout = viper.GetDuration("ct_logs.probe_timeout")
	cfg.CTLogs.PollTimeout = viper.GetDuration("ct_logs.poll_timeout")
	cfg.CTLogs.Concurrency = viper.GetInt("ct_logs.concurrency")
	cfg.CTLogs.RateLimit = viper.GetInt("ct_logs.rate_limit")

	cfg.Reporting.HTMLPath = viper.GetString("reporting.html_path")
	cfg.Reporting.JSONPath = viper.GetString("reporting.json_path")
	cfg.Reporting.Title = viper.GetString("reporting.title")
	cfg.Reporting.URLDisplay = viper.GetInt("reporting.url_display")

	cfg.Metrics.Enabled = viper.GetBool("metrics.enabled")
	cfg.Metrics.Addr = viper.GetString("metrics.addr")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !utils.IsValidURL(cfg.Snapshot.BaseURL) {
		return nil, fmt.Errorf("invalid configuration: snapshot.base_url %q is not an absolute URL", cfg.Snapshot.BaseURL)
	}
	return cfg, nil
}
