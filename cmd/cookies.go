package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veilcast/vidprobe-cli/internal/credentials"
	"github.com/veilcast/vidprobe-cli/internal/observability"
)

// newCookiesCmd creates and configures the `cookies` command.
func newCookiesCmd() *cobra.Command {
	var (
		domainFilter string
		outPath      string
	)

	cookiesCmd := &cobra.Command{
		Use:   "cookies",
		Short: "Exports the browser's current cookies to a credentials file",
		Long: `Cookies dumps the cookie jar of the attached browser and writes the
matching entries to a credentials file, ready for later injection. Export
after signing in manually so batch runs can reuse the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			runner, err := buildRunner(logger)
			if err != nil {
				return err
			}

			cookies, err := runner.DumpCookies(ctx, domainFilter)
			if err != nil {
				return fmt.Errorf("cookie export aborted: %w", err)
			}
			if len(cookies) == 0 {
				return fmt.Errorf("no cookies matched domain filter %q", domainFilter)
			}

			if outPath == "" {
				return printJSON(cookies)
			}
			if err := credentials.WriteFile(outPath, cookies); err != nil {
				return err
			}
			logger.Info("credentials file written",
				zap.String("path", outPath), zap.Int("count", len(cookies)))
			return nil
		},
	}

	cookiesCmd.Flags().StringVarP(&domainFilter, "domain", "d", "", "Only export cookies whose domain contains this substring.")
	cookiesCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the export to this file instead of stdout.")

	return cookiesCmd
}
