package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crlwatch/crlwatch/internal/ctlag"
	"github.com/crlwatch/crlwatch/pkg/models"
)

// NewCTLogsCommand runs the CT log lag analysis on its own and prints the
// per-log results, worst first.
func NewCTLogsCommand() *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ctlogs",
		Short: "Analyze CT log ingestion lag from the latest manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			logger := pipelineLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			analyzer := ctlag.NewAnalyzer(cfg.CTLogs, cfg.Snapshot.BaseURL, cfg.Global.UserAgent, logger)
			logs, err := analyzer.Run(ctx, time.Now().UTC())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(logs)
			}
			printLogTable(logs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the results as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	return cmd
}

func printLogTable(logs []models.LogStatus) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOG\tENTRY LAG\tTIME DIFF (H)\tINGESTED\tSTATUS")
	for _, l := range logs {
		entryLag := "-"
		if l.HasEntryLag {
			entryLag = fmt.Sprintf("%d", l.EntryLag)
		}
		timeDiff := "-"
		if l.HasTimeDiff {
			timeDiff = fmt.Sprintf("%.2f", l.TimeDiffHours)
		}
		ratio := "-"
		if l.HasRatio {
			ratio = fmt.Sprintf("%.2f%%", l.IngestRatio)
		}
		stat := "ok"
		if l.PollError != "" {
			stat = l.PollError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ShortURL, entryLag, timeDiff, ratio, stat)
	}
	w.Flush()
}
