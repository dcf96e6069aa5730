package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crlwatch/crlwatch/cmd/crlwatch/commands"
	"github.com/crlwatch/crlwatch/pkg/models"
	"github.com/crlwatch/crlwatch/pkg/utils"
)

var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "crlwatch",
	Short:   "crlwatch - CRLite ingestion health dashboard",
	Long:    "crlwatch aggregates CRLite CRL audit snapshots and CT log freshness data into an operator-facing status report.",
	Version: version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := initLogging(); err != nil {
			return err
		}

		if err := ensureDirs(); err != nil {
			logrus.Warnf("Failed to ensure directories: %v", err)
		}

		if !viper.GetBool("quiet") {
			printBanner()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		commands.CloseRunLogger()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.crlwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (no banner output)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewUpdateCommand())
	rootCmd.AddCommand(commands.NewCTLogsCommand())
	rootCmd.AddCommand(commands.NewStatsCommand())
	rootCmd.AddCommand(commands.NewConfigureCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))

	rootCmd.InitDefaultCompletionCmd()

	rootCmd.SetVersionTemplate(fmt.Sprintf("crlwatch %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig() error {
	setDefaults()
	viper.SetEnvPrefix("CRLWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".crlwatch"))
		viper.AddConfigPath("/etc/crlwatch/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	d := models.DefaultConfig()

	viper.SetDefault("log_level", d.Global.LogLevel)
	viper.SetDefault("log_format", "text")
	viper.SetDefault("quiet", false)

	viper.SetDefault("global.user_agent", d.Global.UserAgent)
	viper.SetDefault("global.data_dir", d.Global.DataDir)

	viper.SetDefault("snapshot.base_url", d.Snapshot.BaseURL)
	viper.SetDefault("snapshot.audit_file", d.Snapshot.AuditFile)
	viper.SetDefault("snapshot.days_to_fetch", d.Snapshot.DaysToFetch)
	viper.SetDefault("snapshot.files_per_day", d.Snapshot.FilesPerDay)
	viper.SetDefault("snapshot.cache_dir", d.Snapshot.CacheDir)
	viper.SetDefault("snapshot.fetch_timeout", d.Snapshot.FetchTimeout)
	viper.SetDefault("snapshot.concurrency", d.Snapshot.Concurrency)
	viper.SetDefault("snapshot.rate_limit", d.Snapshot.RateLimit)

	viper.SetDefault("analysis.stale_age_hours", d.Analysis.StaleAgeHours)
	viper.SetDefault("analysis.anomaly_threshold", d.Analysis.AnomalyThreshold)

	viper.SetDefault("ct_logs.enabled", d.CTLogs.Enabled)
	viper.SetDefault("ct_logs.manifest_file", d.CTLogs.ManifestFile)
	viper.SetDefault("ct_logs.lookback_days", d.CTLogs.LookbackDays)
	viper.SetDefault("ct_logs.probe_timeout", d.CTLogs.ProbeTimeout)
	viper.SetDefault("ct_logs.poll_timeout", d.CTLogs.PollTimeout)
	viper.SetDefault("ct_logs.concurrency", d.CTLogs.Concurrency)
	viper.SetDefault("ct_logs.rate_limit", d.CTLogs.RateLimit)

	viper.SetDefault("reporting.html_path", d.Reporting.HTMLPath)
	viper.SetDefault("reporting.json_path", d.Reporting.JSONPath)
	viper.SetDefault("reporting.title", d.Reporting.Title)
	viper.SetDefault("reporting.url_display", d.Reporting.URLDisplay)

	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.addr", d.Metrics.Addr)
}

func initLogging() error {
	logConfig := utils.LogConfig{
		Level:         viper.GetString("log_level"),
		Format:        viper.GetString("log_format"),
		FileLocation:  viper.GetString("log_file"),
		EnableConsole: true,
	}

	logger, err := utils.NewLogger(logConfig, "crlwatch", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		basic := utils.BasicLogger()
		logrus.SetOutput(basic.Out)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(basic.Formatter)
		return nil
	}

	commands.SetRunLogger(logger)

	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.Level)
	logrus.SetFormatter(logger.Formatter)

	for _, hooks := range logger.Hooks {
		for _, h := range hooks {
			logrus.AddHook(h)
		}
	}
	return nil
}

func ensureDirs() error {
	dirs := []string{
		viper.GetString("global.data_dir"),
		viper.GetString("snapshot.cache_dir"),
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := utils.EnsureDir(d); err != nil {
			return fmt.Errorf("ensure dir %s: %w", d, err)
		}
	}
	return nil
}

func printBanner() {
	fmt.Printf("crlwatch %s - CRLite ingestion health dashboard\n", version)
	fmt.Printf("Build: %s (%s) | %s/%s\n\n", commit, buildDate, runtime.GOOS, runtime.GOARCH)
}
