package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crlwatch/crlwatch/internal/snapshot"
	"github.com/crlwatch/crlwatch/pkg/utils"
)

// NewStatsCommand inspects the snapshot cache: per-file sizes, entry counts,
// and content fingerprints. Identical fingerprints across slots usually mean
// the upstream published the same file twice.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			logger := pipelineLogger()

			cache, err := snapshot.NewCache(cfg.Snapshot.CacheDir, logger)
			if err != nil {
				return err
			}
			infos, err := cache.Stats()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Printf("Cache %s is empty\n", cfg.Snapshot.CacheDir)
				return nil
			}

			var totalBytes int64
			var totalEntries, unparseable int
			seen := map[string]int{}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLOT\tSIZE\tENTRIES\tFINGERPRINT")
			for _, info := range infos {
				entries := "-"
				if info.Parseable {
					entries = fmt.Sprintf("%d", info.Entries)
					totalEntries += info.Entries
				} else {
					unparseable++
				}
				totalBytes += info.SizeBytes
				seen[info.Fingerprint]++
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					info.Slot, utils.HumanizeBytes(info.SizeBytes), entries, info.Fingerprint)
			}
			w.Flush()

			duplicates := 0
			for _, n := range seen {
				if n > 1 {
					duplicates += n - 1
				}
			}

			fmt.Println()
			fmt.Println("╭──────────────────────────────────────────────╮")
			fmt.Println("│               Cache Summary                  │")
			fmt.Println("╰──────────────────────────────────────────────╯")
			fmt.Printf("  Files:          %d\n", len(infos))
			fmt.Printf("  Total size:     %s\n", utils.HumanizeBytes(totalBytes))
			fmt.Printf("  Audit entries:  %d\n", totalEntries)
			if unparseable > 0 {
				fmt.Printf("  Unparseable:    %d\n", unparseable)
			}
			if duplicates > 0 {
				fmt.Printf("  Duplicate files: %d (same fingerprint)\n", duplicates)
			}
			return nil
		},
	}
}
