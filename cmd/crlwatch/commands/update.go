package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crlwatch/crlwatch/internal/snapshot"
)

// NewUpdateCommand refreshes the local snapshot cache without rendering a
// report: fetch whatever the current window expects and is not cached yet,
// then drop files that fell out of the window.
func NewUpdateCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the snapshot cache for the current window",
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

			window := snapshot.Window{Days: cfg.Snapshot.DaysToFetch, PerDay: cfg.Snapshot.FilesPerDay}
			slots := window.Slots(time.Now().UTC())

			cache, err := snapshot.NewCache(cfg.Snapshot.CacheDir, logger)
			if err != nil {
				return err
			}
			fetcher := snapshot.NewFetcher(cfg.Snapshot, cfg.Global.UserAgent, logger)

			res := fetcher.Update(ctx, cache, slots)
			cache.Reconcile(slots)

			if runLogger != nil {
				for _, slot := range res.Failed {
					runLogger.WithSlot(slot).Warn("Slot left unfetched after update pass")
				}
			}

			cached, err := cache.CachedSlots()
			if err != nil {
				return err
			}
			fmt.Printf("Fetched %d new snapshots (%d failed), %d of %d slots cached\n",
				len(res.Fetched), len(res.Failed), len(cached), len(slots))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("base-url", "", "snapshot base URL")
	flags.String("cache-dir", "", "snapshot cache directory")
	flags.Int("days", 0, "days of snapshots to cover")
	flags.DurationVar(&timeout, "timeout", 10*time.Minute, "overall fetch timeout")

	_ = viper.BindPFlag("snapshot.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("snapshot.cache_dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("snapshot.days_to_fetch", flags.Lookup("days"))

	return cmd
}
