package commands

import (
	"context"
	"fmt"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crlwatch/crlwatch/internal/ctlag"
	"github.com/crlwatch/crlwatch/internal/reporting"
	"github.com/crlwatch/crlwatch/internal/snapshot"
	"github.com/crlwatch/crlwatch/internal/status"
	"github.com/crlwatch/crlwatch/pkg/models"
	"github.com/crlwatch/crlwatch/pkg/utils"
)

type reportOptions struct {
	offline    bool
	skipCTLogs bool
	timeout    time.Duration
}

// NewReportCommand wires the full pipeline: update the snapshot cache, fold
// the audit entries into issuer timelines, classify and rank them, analyze CT
// log lag, and render the HTML heatmap plus the JSON export.
func NewReportCommand() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch the latest snapshots and render the status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "HTML report path")
	flags.String("json-output", "", "JSON status export path")
	flags.String("base-url", "", "snapshot base URL")
	flags.String("cache-dir", "", "snapshot cache directory")
	flags.Int("days", 0, "days of snapshots to cover")
	flags.BoolVar(&opts.offline, "offline", false, "no network: use cached snapshots only and skip CT log polling")
	flags.BoolVar(&opts.skipCTLogs, "skip-ct-logs", false, "skip the CT log lag analysis")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall run timeout")

	_ = viper.BindPFlag("reporting.html_path", flags.Lookup("output"))
	_ = viper.BindPFlag("reporting.json_path", flags.Lookup("json-output"))
	_ = viper.BindPFlag("snapshot.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("snapshot.cache_dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("snapshot.days_to_fetch", flags.Lookup("days"))

	return cmd
}

// shouldAnalyzeCTLogs gates the live STH polling: offline runs touch no
// network at all, so they skip the CT lag analysis along with fetching.
func shouldAnalyzeCTLogs(cfg *models.Config, opts *reportOptions) bool {
	return cfg.CTLogs.Enabled && !opts.skipCTLogs && !opts.offline
}

func runReport(parent context.Context, cfg *models.Config, opts *reportOptions) error {
	logger := pipelineLogger()
	rlog := stageLogger("report")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	metrics := utils.NewRunMetrics(true)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServerWithContext(ctx, cfg.Metrics.Addr); err != nil {
				rlog.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	start := time.Now()
	now := time.Now().UTC()

	window := snapshot.Window{Days: cfg.Snapshot.DaysToFetch, PerDay: cfg.Snapshot.FilesPerDay}
	slots := window.Slots(now)

	cache, err := snapshot.NewCache(cfg.Snapshot.CacheDir, logger)
	if err != nil {
		return err
	}
	fetcher := snapshot.NewFetcher(cfg.Snapshot, cfg.Global.UserAgent, logger)

	if opts.offline {
		rlog.Info("Offline mode, using cached snapshots only")
	} else {
		res := fetcher.Update(ctx, cache, slots)
		metrics.SlotsFetched.Add(float64(len(res.Fetched)))
		metrics.SlotFetchErrors.Add(float64(len(res.Failed)))
	}
	cache.Reconcile(slots)
	if cached, err := cache.CachedSlots(); err == nil {
		metrics.SlotsCached.Set(float64(len(cached)))
	}

	docs := fetcher.LoadAll(cache, slots)
	if len(docs) == 0 {
		return fmt.Errorf("%w (last %d days), cannot produce a report", snapshot.ErrNoData, cfg.Snapshot.DaysToFetch)
	}
	entries := 0
	for _, doc := range docs {
		entries += len(doc)
	}
	metrics.EntriesLoaded.Add(float64(entries))

	board := status.NewBuilder(logger).Build(slots, docs)
	metrics.IssuersTracked.Set(float64(len(board.Timelines)))

	classifier := status.NewClassifier(cfg.Analysis.StaleAgeHours, cfg.Analysis.AnomalyThreshold)
	ranked := status.NewRanker(classifier).Rank(board)

	var logs []models.LogStatus
	if shouldAnalyzeCTLogs(cfg, opts) {
		analyzer := ctlag.NewAnalyzer(cfg.CTLogs, cfg.Snapshot.BaseURL, cfg.Global.UserAgent, logger)
		logs, err = analyzer.Run(ctx, now)
		if err != nil {
			rlog.Warnf("CT log lag analysis skipped: %v", err)
		} else {
			recordCTMetrics(metrics, logs)
		}
	}

	generator, err := reporting.NewGenerator(cfg.Reporting, logger)
	if err != nil {
		return err
	}
	if err := generator.WriteHTML(slots, ranked, logs); err != nil {
		return err
	}
	if err := generator.WriteJSON(ranked); err != nil {
		return err
	}

	metrics.RunDuration.Observe(time.Since(start).Seconds())
	printReportSummary(cfg, slots, docs, ranked, logs, time.Since(start))
	return nil
}

func recordCTMetrics(metrics *utils.RunMetrics, logs []models.LogStatus) {
	var failed int
	var worstLag int64
	var worstDiff float64
	for _, l := range logs {
		if l.PollError != "" {
			failed++
			continue
		}
		if l.HasEntryLag && l.EntryLag > worstLag {
			worstLag = l.EntryLag
		}
		if l.HasTimeDiff && math.Abs(l.TimeDiffHours) > worstDiff {
			worstDiff = math.Abs(l.TimeDiffHours)
		}
	}
	metrics.LogsPolled.Add(float64(len(logs)))
	metrics.LogPollErrors.Add(float64(failed))
	metrics.WorstEntryLag.Set(float64(worstLag))
	metrics.WorstTimeDiff.Set(worstDiff)
}

func printReportSummary(cfg *models.Config, slots []models.Slot, docs map[models.Slot][]models.AuditEntry, ranked []status.RankedIssuer, logs []models.LogStatus, elapsed time.Duration) {
	counts := map[status.Severity]int{}
	for _, issuer := range ranked {
		counts[issuer.Severity]++
	}

	fmt.Println("╭──────────────────────────────────────────────╮")
	fmt.Println("│                Run Summary                   │")
	fmt.Println("╰──────────────────────────────────────────────╯")
	fmt.Printf("  Snapshots loaded:   %d of %d expected\n", len(docs), len(slots))
	fmt.Printf("  Issuers tracked:    %d\n", len(ranked))
	fmt.Printf("  Errors:             %d\n", counts[status.SeverityError])
	fmt.Printf("  Warnings:           %d\n", counts[status.SeverityWarning])
	fmt.Printf("  Missing data:       %d\n", counts[status.SeverityMissingData])
	fmt.Printf("  Anomalies:          %d\n", counts[status.SeverityAnomaly])
	if len(logs) > 0 {
		fmt.Printf("  CT logs analyzed:   %d\n", len(logs))
	}
	fmt.Printf("  HTML report:        %s\n", cfg.Reporting.HTMLPath)
	fmt.Printf("  JSON export:        %s\n", cfg.Reporting.JSONPath)
	fmt.Printf("  Elapsed:            %s\n\n", elapsed.Round(time.Millisecond))
}
