package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcast/vidprobe-cli/internal/observability"
)

// newAuthCheckCmd creates and configures the `authcheck` command.
func newAuthCheckCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "authcheck <probe-url>",
		Short: "Verifies the injected session is still signed in",
		Long: `Authcheck navigates the working tab to a known gated page and inspects
the rendered content for sign-in, library, and paywall markers. Run this
before a long batch to avoid burning the whole session on a logged-out tab.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			runner, err := buildRunner(logger)
			if err != nil {
				return err
			}

			status, err := runner.CheckAuth(ctx, args[0])
			if err != nil {
				return fmt.Errorf("auth probe aborted: %w", err)
			}

			if err := printJSON(status); err != nil {
				return err
			}
			if !status.Authenticated {
				return fmt.Errorf("session is not authenticated; refresh the browser login and re-export cookies")
			}
			return nil
		},
	}

	return authCmd
}
