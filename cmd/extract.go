package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/observability"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

// newExtractCmd creates and configures the `extract` command.
func newExtractCmd() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract <page-url>",
		Short: "Probes a single page and classifies its video embed",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			pageURL := args[0]

			runner, err := buildRunner(logger)
			if err != nil {
				return err
			}

			res, err := runner.ProbeURL(ctx, pageURL)
			if err != nil {
				return fmt.Errorf("probe aborted: %w", err)
			}

			if err := printJSON(res); err != nil {
				return err
			}

			if res.Failed() {
				return fmt.Errorf("extraction failed in state %s: %s", res.FailedState, res.Error)
			}
			if res.Platform == schemas.PlatformNone {
				logger.Info("no video found", zap.String("page_url", pageURL))
			}
			return nil
		},
	}

	return extractCmd
}
