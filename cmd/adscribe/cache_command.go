package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adscribe/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the analysis cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheCleanCommand(ctx))

	return cacheCmd
}

// cacheManager returns nil with a notice when caching is disabled.
func cacheManager(ctx *commandContext) (*cache.Manager, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	if !cfg.Cache.Enabled {
		return nil, "Analysis cache is disabled (cache.enabled = false)", nil
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, "", err
	}
	return cache.NewManager(cfg, logger, nil), "", nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show analysis cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, notice, err := cacheManager(ctx)
			if err != nil {
				return err
			}
			if manager == nil {
				fmt.Fprintln(cmd.OutOrStdout(), notice)
				return nil
			}
			stats, err := manager.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			const stampLayout = "2006-01-02 15:04"
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Location: %s\n", manager.Root())
			fmt.Fprintf(out, "Entries:  %d (%d expired)\n", stats.Entries, stats.Expired)
			fmt.Fprintf(out, "Size:     %s / %s\n", humanBytes(stats.TotalBytes), humanBytes(stats.MaxBytes))
			if stats.TotalFSBytes > 0 {
				fmt.Fprintf(out, "Disk:     %s free (%.1f%%)\n", humanBytes(int64(stats.FreeBytes)), stats.FreeRatio*100)
			}
			if !stats.Oldest.IsZero() {
				fmt.Fprintf(out, "Oldest:   %s\n", stats.Oldest.Local().Format(stampLayout))
				fmt.Fprintf(out, "Newest:   %s\n", stats.Newest.Local().Format(stampLayout))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCacheCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove expired entries and evict down to the size limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, notice, err := cacheManager(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if manager == nil {
				fmt.Fprintln(out, notice)
				return nil
			}
			report, err := manager.Clean(cmd.Context())
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Fprintln(out, "Another cache clean is already running; skipped")
				return nil
			}
			fmt.Fprintf(out, "Removed %d expired and %d evicted entries (%s freed); %d remain\n",
				report.Expired, report.Evicted, humanBytes(report.FreedBytes), report.Remaining)
			return nil
		},
	}
}
