package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcast/vidprobe-cli/internal/observability"
	"github.com/veilcast/vidprobe-cli/internal/store"
)

// newStatsCmd creates and configures the `stats` command.
func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Shows how many catalog rows resolved to each platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is not configured (VIDPROBE_DATABASE_URL)")
			}
			st, err := store.Connect(ctx, cfg.Database.URL, logger)
			if err != nil {
				return err
			}

			counts, err := st.PlatformCounts(ctx)
			if err != nil {
				return err
			}
			return printJSON(counts)
		},
	}

	return statsCmd
}
