package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/batch"
	"github.com/veilcast/vidprobe-cli/internal/observability"
	"github.com/veilcast/vidprobe-cli/internal/store"
)

// newBatchCmd creates and configures the `batch` command.
func newBatchCmd() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Probes every pending catalog row, checkpointing as it goes",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("batch.limit", cmd.Flags().Lookup("limit")); err != nil {
				return err
			}
			if err := viper.BindPFlag("batch.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flag overrides landed in viper during PreRunE; re-resolve.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is not configured (VIDPROBE_DATABASE_URL)")
			}
			st, err := store.Connect(ctx, cfg.Database.URL, logger)
			if err != nil {
				return err
			}

			runner, err := buildRunner(logger)
			if err != nil {
				return err
			}

			processor := batch.NewProcessor(cfg.Batch, st, runner.ProbeURL, logger)
			progress, err := processor.Run(ctx)
			if progress != nil {
				if printErr := printJSON(progress); printErr != nil {
					logger.Warn("failed to print progress summary", zap.Error(printErr))
				}
			}
			if err != nil {
				return fmt.Errorf("batch aborted: %w", err)
			}
			return nil
		},
	}

	batchCmd.Flags().IntP("limit", "n", 0, "Maximum rows to process this session. (Overrides config/env)")
	batchCmd.Flags().IntP("concurrency", "j", 0, "Parallel attempts per fetched page. (Overrides config/env)")

	return batchCmd
}
